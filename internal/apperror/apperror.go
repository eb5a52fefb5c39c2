// internal/apperror/apperror.go
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a rejection so the transport layer can map it without inspecting messages.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindTransport  Kind = "transport"
)

// Stable reason codes. Clients map these to human-readable text.
const (
	ReasonPackageInactive      = "package_inactive"
	ReasonPackageMismatch      = "package_mismatch"
	ReasonPurchaseRequired     = "purchase_required"
	ReasonPurchaseNotOwned     = "purchase_not_owned"
	ReasonPurchaseExpired      = "purchase_expired"
	ReasonPurchaseCompleted    = "purchase_completed"
	ReasonPurchaseInUse        = "purchase_in_use"
	ReasonPurchaseOpen         = "purchase_open"
	ReasonSessionInactive      = "session_inactive"
	ReasonSessionCompleted     = "session_completed"
	ReasonWrongGameType        = "wrong_game_type"
	ReasonLetterAlreadyUsed    = "letter_already_used"
	ReasonUnknownLetter        = "unknown_letter"
	ReasonInvalidVariant       = "invalid_variant"
	ReasonInvalidTeam          = "invalid_team"
	ReasonInvalidSide          = "invalid_side"
	ReasonInvalidOrder         = "invalid_order"
	ReasonIndexOutOfRange      = "index_out_of_range"
	ReasonNegativeTime         = "negative_time"
	ReasonNoTimeLeft           = "no_time_left"
	ReasonNoCurrentLetter      = "no_current_letter"
	ReasonNameRequired         = "name_required"
	ReasonContestantNameTaken  = "contestant_name_taken"
	ReasonLinkCollision        = "link_collision"
	ReasonSessionBusy          = "session_busy"
	ReasonStaleWrite           = "stale_write"
	ReasonSessionNotFound      = "session_not_found"
	ReasonPurchaseNotFound     = "purchase_not_found"
	ReasonPackageNotFound      = "package_not_found"
	ReasonQuestionNotFound     = "question_not_found"
	ReasonRiddleNotFound       = "riddle_not_found"
	ReasonProgressNotFound     = "progress_not_found"
	ReasonContestantNotFound   = "contestant_not_found"
	ReasonLinkNotFound         = "link_not_found"
	ReasonSocketGone           = "socket_gone"
	ReasonUnauthorized         = "unauthorized"
	ReasonInvalidRequest       = "invalid_request"
)

// Error is a typed rejection. It is never partially applied: by the time one is
// returned the session and progress records are unchanged.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and reason, so sentinel-style
// comparisons work through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Reason == e.Reason
}

func newErr(kind Kind, reason, format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

func Validation(reason, format string, args ...interface{}) *Error {
	return newErr(KindValidation, reason, format, args...)
}

func NotFound(reason, format string, args ...interface{}) *Error {
	return newErr(KindNotFound, reason, format, args...)
}

func Conflict(reason, format string, args ...interface{}) *Error {
	return newErr(KindConflict, reason, format, args...)
}

func Transport(reason, format string, args ...interface{}) *Error {
	return newErr(KindTransport, reason, format, args...)
}

// Wrap attaches a cause to a typed error.
func Wrap(err error, kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// As extracts the typed error from a chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, or "" when err carries no typed rejection.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// ReasonOf reports the reason code of err, or "" when err carries no typed rejection.
func ReasonOf(err error) string {
	if e, ok := As(err); ok {
		return e.Reason
	}
	return ""
}

// HTTPStatus maps a kind to the status code used at the API boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

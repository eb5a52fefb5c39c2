package hub

import "github.com/google/uuid"

// EventType is the session-scoped topic of an Event.
type EventType string

const (
	QuestionRevealed EventType = "question-revealed"
	Buzz             EventType = "buzz"
	// GenericUpdate is relayed without interpretation; Payload["kind"] names the update.
	GenericUpdate EventType = "generic-update"
)

// Event is what travels to every socket of a session group.
type Event struct {
	Type      EventType `json:"type"`
	SessionID uuid.UUID `json:"session_id"`

	Letter         string `json:"letter,omitempty"`
	QuestionText   string `json:"question_text,omitempty"`
	ContestantName string `json:"contestant_name,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`
}

// NewQuestionRevealed carries the question text only; answers never go out on this topic.
func NewQuestionRevealed(letter, questionText string) Event {
	return Event{Type: QuestionRevealed, Letter: letter, QuestionText: questionText}
}

func NewBuzz(contestantName string) Event {
	return Event{Type: Buzz, ContestantName: contestantName}
}

func NewGenericUpdate(kind string, payload map[string]interface{}) Event {
	p := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		p[k] = v
	}
	p["kind"] = kind
	return Event{Type: GenericUpdate, Payload: p}
}

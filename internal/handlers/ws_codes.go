// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the session socket.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidLinkError    = 3003 // Link token in the WS URL does not resolve to a session.
	SessionEndedError   = 3004 // Session completed while the socket was open.
)

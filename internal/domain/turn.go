package domain

import "context"

// RequestTypeSessionEnded is the request type Alexa sends when a session
// terminates.
const RequestTypeSessionEnded = "SessionEndedRequest"

// Turn is the data of one request/response cycle that lifecycle hooks
// receive.
type Turn struct {
	RequestType string
	IntentName  string
	// Slots is nil when the request carried no slots.
	Slots     map[string]string
	SessionID string
	UserID    string
	Platform  string
	Reply     Reply
}

// Reply is what the skill said back for a turn.
type Reply struct {
	SSML       string
	Text       string
	Statements []string
}

// TurnHook is invoked by the skill host at a lifecycle point.
type TurnHook func(ctx context.Context, turn Turn)

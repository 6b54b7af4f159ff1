package domain

type MessageKind string

const (
	MessageKindUser  MessageKind = "user"
	MessageKindAgent MessageKind = "agent"
)

// Message is a single analytics record. Intent and NotHandled only apply to
// user messages.
type Message struct {
	Kind       MessageKind
	SessionID  string
	UserID     string
	Timestamp  string
	Text       string
	Intent     string
	NotHandled bool
}

// MessageSet is the unit of submission to the analytics service.
type MessageSet struct {
	APIKey   string
	Platform string
	Version  string
	Messages []Message
}

// MessageResult is the vendor's per-message acknowledgement.
type MessageResult struct {
	MessageID string
	Status    string
	Error     string
}

// SendResult summarizes a batch submission.
type SendResult struct {
	AllSucceeded bool
	Status       int
	Responses    []MessageResult
}

// FailedBatch records a batch the analytics service did not accept.
type FailedBatch struct {
	PK        string
	SK        string
	BatchID   string
	SessionID string
	UserID    string
	Payload   string
	Error     string
	TTL       int64
}

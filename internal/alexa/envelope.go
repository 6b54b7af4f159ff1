package alexa

import "strings"

const (
	RequestTypeLaunch       = "LaunchRequest"
	RequestTypeIntent       = "IntentRequest"
	RequestTypeSessionEnded = "SessionEndedRequest"

	SpeechTypeSSML      = "SSML"
	SpeechTypePlainText = "PlainText"

	// PlatformName labels turns that arrive through this envelope.
	PlatformName = "alexa"
)

// RequestEnvelope is the JSON body Alexa posts to a skill.
type RequestEnvelope struct {
	Version string   `json:"version"`
	Session *Session `json:"session,omitempty"`
	Context *Context `json:"context,omitempty"`
	Request Request  `json:"request"`
}

type Session struct {
	New         bool           `json:"new"`
	SessionID   string         `json:"sessionId"`
	Application Application    `json:"application"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	User        User           `json:"user"`
}

type Application struct {
	ApplicationID string `json:"applicationId"`
}

type User struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken,omitempty"`
}

type Context struct {
	System System `json:"System"`
}

type System struct {
	Application Application `json:"application"`
	User        User        `json:"user"`
}

type Request struct {
	Type      string        `json:"type"`
	RequestID string        `json:"requestId,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
	Locale    string        `json:"locale,omitempty"`
	Intent    *Intent       `json:"intent,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Error     *RequestError `json:"error,omitempty"`
}

type Intent struct {
	Name  string          `json:"name"`
	Slots map[string]Slot `json:"slots,omitempty"`
}

type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

type RequestError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ResponseEnvelope is the JSON body a skill answers with.
type ResponseEnvelope struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes,omitempty"`
	Response          Response       `json:"response"`
}

type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	ShouldEndSession bool          `json:"shouldEndSession"`
}

type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

type Reprompt struct {
	OutputSpeech OutputSpeech `json:"outputSpeech"`
}

// UserID prefers the session user and falls back to context.System, which
// is the only place it appears for out-of-session requests.
func (e *RequestEnvelope) UserID() string {
	if e.Session != nil && e.Session.User.UserID != "" {
		return e.Session.User.UserID
	}
	if e.Context != nil {
		return e.Context.System.User.UserID
	}
	return ""
}

func (e *RequestEnvelope) ApplicationID() string {
	if e.Session != nil && e.Session.Application.ApplicationID != "" {
		return e.Session.Application.ApplicationID
	}
	if e.Context != nil {
		return e.Context.System.Application.ApplicationID
	}
	return ""
}

func (e *RequestEnvelope) SessionID() string {
	if e.Session == nil {
		return ""
	}
	return e.Session.SessionID
}

// IntentName is empty for requests without an intent.
func (e *RequestEnvelope) IntentName() string {
	if e.Request.Intent == nil {
		return ""
	}
	return e.Request.Intent.Name
}

// SlotValues maps slot name to value. It is nil when the intent carried no
// slots. The map key is the slot's own name when set, else its key.
func (e *RequestEnvelope) SlotValues() map[string]string {
	if e.Request.Intent == nil || e.Request.Intent.Slots == nil {
		return nil
	}
	out := make(map[string]string, len(e.Request.Intent.Slots))
	for key, s := range e.Request.Intent.Slots {
		name := s.Name
		if name == "" {
			name = key
		}
		out[name] = s.Value
	}
	return out
}

// SSML joins statements with a space and wraps them in a speak element.
func SSML(statements ...string) string {
	return "<speak>" + strings.Join(statements, " ") + "</speak>"
}

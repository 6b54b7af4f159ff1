package tracker

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"skill-analytics/internal/domain"
)

const protocolVersion = "1.0"

var unhandledIntents = map[string]struct{}{
	"AMAZON.FallbackIntent": {},
	"FallbackIntent":        {},
	"Unhandled":             {},
	"DefaultFallbackIntent": {},
}

func (t *Tracker) buildMessageSet(turn domain.Turn, now time.Time) domain.MessageSet {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	return domain.MessageSet{
		APIKey:   t.cfg.APIKey,
		Platform: t.cfg.Platform,
		Version:  protocolVersion,
		Messages: []domain.Message{
			userMessage(turn, ts),
			agentMessage(turn, ts),
		},
	}
}

func userMessage(turn domain.Turn, ts string) domain.Message {
	intent := turn.IntentName
	if intent == "" {
		intent = turn.RequestType
	}
	_, notHandled := unhandledIntents[turn.IntentName]
	return domain.Message{
		Kind:       domain.MessageKindUser,
		SessionID:  turn.SessionID,
		UserID:     turn.UserID,
		Timestamp:  ts,
		Text:       slotText(turn.Slots),
		Intent:     intent,
		NotHandled: notHandled,
	}
}

func agentMessage(turn domain.Turn, ts string) domain.Message {
	return domain.Message{
		Kind:      domain.MessageKindAgent,
		SessionID: turn.SessionID,
		UserID:    turn.UserID,
		Timestamp: ts,
		Text:      replyText(turn.Reply),
	}
}

// slotText is the JSON object of slot values, or "" when the request had no
// slots at all.
func slotText(slots map[string]string) string {
	if slots == nil {
		return ""
	}
	b, err := json.Marshal(slots)
	if err != nil {
		return ""
	}
	return string(b)
}

func replyText(r domain.Reply) string {
	text := r.SSML
	if text == "" {
		text = r.Text
	}
	if text == "" {
		text = strings.Join(r.Statements, " ")
	}
	text = strings.Replace(text, "<speak>", "", 1)
	return strings.Replace(text, "</speak>", "", 1)
}

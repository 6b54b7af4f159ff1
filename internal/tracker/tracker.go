package tracker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"skill-analytics/internal/domain"
)

const defaultPlatform = "Alexa"

// Config controls what the tracker sends and for whom.
type Config struct {
	APIKey          string
	Platform        string
	SuppressSending bool
	// IgnoreUsers holds user ids or regular expressions matched against the
	// whole user id.
	IgnoreUsers []string
}

// Outcome reports what Track did with a turn.
type Outcome string

const (
	OutcomeIgnoredUser   Outcome = "ignored_user"
	OutcomeSuppressed    Outcome = "suppressed"
	OutcomeNotSessionEnd Outcome = "not_session_end"
	OutcomeSent          Outcome = "sent"
	OutcomeFailed        Outcome = "failed"
)

// Sender submits a batch of analytics messages.
type Sender interface {
	SendMessageSet(ctx context.Context, set domain.MessageSet) (domain.SendResult, error)
}

// FailureRecorder keeps batches the Sender could not deliver.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, set domain.MessageSet, cause error) error
}

// Host is the skill application the tracker attaches to.
type Host interface {
	OnBeforeReplySent(hook domain.TurnHook)
	OnSessionEnded(hook domain.TurnHook)
}

type Option func(*Tracker)

// WithFailureRecorder stores failed batches through r.
func WithFailureRecorder(r FailureRecorder) Option {
	return func(t *Tracker) {
		t.recorder = r
	}
}

// Tracker forwards each conversational turn to the analytics service as one
// user message and one agent message.
type Tracker struct {
	cfg      Config
	sender   Sender
	recorder FailureRecorder
	ignore   userMatcher
	now      func() time.Time
}

// New validates cfg, fills in defaults and returns a Tracker that submits
// through sender.
func New(cfg Config, sender Sender, opts ...Option) (*Tracker, error) {
	if sender == nil {
		return nil, errors.New("tracker: sender must not be nil")
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("tracker: api key must not be empty")
	}
	if strings.TrimSpace(cfg.Platform) == "" {
		cfg.Platform = defaultPlatform
	}
	cfg.IgnoreUsers = append([]string{}, cfg.IgnoreUsers...)

	t := &Tracker{
		cfg:    cfg,
		sender: sender,
		ignore: newUserMatcher(cfg.IgnoreUsers),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Register attaches the tracker to the host's before-reply-sent and
// session-ended hooks.
func (t *Tracker) Register(h Host) {
	h.OnBeforeReplySent(func(ctx context.Context, turn domain.Turn) {
		t.Track(ctx, turn, false)
	})
	h.OnSessionEnded(func(ctx context.Context, turn domain.Turn) {
		t.Track(ctx, turn, true)
	})
}

// Track submits turn unless it is filtered out. Submission errors are logged
// and reported as OutcomeFailed, never returned.
func (t *Tracker) Track(ctx context.Context, turn domain.Turn, sessionEnded bool) Outcome {
	if t.ignore.matches(turn.UserID) {
		return OutcomeIgnoredUser
	}
	if t.cfg.SuppressSending {
		return OutcomeSuppressed
	}
	// session-ended also fires when a reply closes the session; that turn
	// was already counted before the reply went out.
	if sessionEnded && turn.RequestType != domain.RequestTypeSessionEnded {
		return OutcomeNotSessionEnd
	}

	ctx, span := otel.Tracer("skill-analytics/tracker").Start(ctx, "tracker.Track")
	defer span.End()
	span.SetAttributes(
		attribute.String("analytics.request_type", turn.RequestType),
		attribute.Bool("analytics.session_ended", sessionEnded),
	)

	slog.InfoContext(ctx, "Sending to chatbase",
		"session_id", turn.SessionID,
		"request_type", turn.RequestType,
		"intent", turn.IntentName)

	set := t.buildMessageSet(turn, t.now())
	res, err := t.sender.SendMessageSet(ctx, set)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chatbase submission failed")
		span.SetAttributes(attribute.String("analytics.outcome", string(OutcomeFailed)))
		slog.ErrorContext(ctx, "chatbase submission failed",
			"session_id", turn.SessionID,
			"err", err)
		t.recordFailure(ctx, set, err)
		return OutcomeFailed
	}

	span.SetAttributes(attribute.String("analytics.outcome", string(OutcomeSent)))
	slog.InfoContext(ctx, "Response from chatbase",
		"session_id", turn.SessionID,
		"status", res.Status,
		"all_succeeded", res.AllSucceeded,
		"messages", len(res.Responses))
	return OutcomeSent
}

func (t *Tracker) recordFailure(ctx context.Context, set domain.MessageSet, cause error) {
	if t.recorder == nil {
		return
	}
	if err := t.recorder.RecordFailure(ctx, set, cause); err != nil {
		slog.WarnContext(ctx, "failed to record undelivered analytics batch", "err", err)
	}
}

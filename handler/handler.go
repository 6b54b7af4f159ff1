package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"skill-analytics/internal/alexa"
)

// ErrSkillMismatch is returned for requests addressed to another skill.
var ErrSkillMismatch = errors.New("handler: request application id does not match skill id")

// Executor runs one Alexa request through the skill.
type Executor interface {
	Execute(ctx context.Context, env alexa.RequestEnvelope) (alexa.ResponseEnvelope, error)
}

type Handler struct {
	exec    Executor
	skillID string
}

type Option func(*Handler)

// WithSkillID rejects requests whose application id differs from id. An
// empty id disables the check.
func WithSkillID(id string) Option {
	return func(h *Handler) {
		h.skillID = strings.TrimSpace(id)
	}
}

func NewHandler(exec Executor, opts ...Option) (*Handler, error) {
	if exec == nil {
		return nil, errors.New("handler: executor must not be nil")
	}
	h := &Handler{exec: exec}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle is the Lambda entry point for Alexa skill invocations.
func (h *Handler) Handle(ctx context.Context, env alexa.RequestEnvelope) (alexa.ResponseEnvelope, error) {
	log := slog.With(
		"correlation_id", correlationID(ctx, env),
		"request_type", env.Request.Type,
		"session_id", env.SessionID(),
	)

	if h.skillID != "" && env.ApplicationID() != h.skillID {
		log.WarnContext(ctx, "rejected request for another skill", "application_id", env.ApplicationID())
		return alexa.ResponseEnvelope{}, ErrSkillMismatch
	}

	resp, err := h.exec.Execute(ctx, env)
	if err != nil {
		log.ErrorContext(ctx, "skill execution failed", "err", err)
		return alexa.ResponseEnvelope{}, fmt.Errorf("handler: execute: %w", err)
	}
	log.InfoContext(ctx, "request handled", "end_session", resp.Response.ShouldEndSession)
	return resp, nil
}

// correlationID prefers the Lambda request id, then the Alexa request id.
func correlationID(ctx context.Context, env alexa.RequestEnvelope) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	if id := strings.TrimSpace(env.Request.RequestID); id != "" {
		return id
	}
	return newCorrelationID()
}

var newCorrelationID = func() string {
	return uuid.NewString()
}

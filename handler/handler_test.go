package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/require"

	"skill-analytics/internal/alexa"
	"skill-analytics/internal/skill"
)

type stubExecutor struct {
	out   alexa.ResponseEnvelope
	err   error
	in    alexa.RequestEnvelope
	calls int
}

func (s *stubExecutor) Execute(_ context.Context, env alexa.RequestEnvelope) (alexa.ResponseEnvelope, error) {
	s.calls++
	s.in = env
	return s.out, s.err
}

func makeEnvelope(appID string) alexa.RequestEnvelope {
	return alexa.RequestEnvelope{
		Version: "1.0",
		Session: &alexa.Session{
			SessionID:   "session-1",
			Application: alexa.Application{ApplicationID: appID},
			User:        alexa.User{UserID: "user-id"},
		},
		Request: alexa.Request{Type: alexa.RequestTypeLaunch, RequestID: "req-1"},
	}
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	exec := &stubExecutor{out: alexa.ResponseEnvelope{Version: "1.0"}}
	h, err := NewHandler(exec)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEnvelope("appId"))
	require.NoError(t, err)
	require.Equal(t, "1.0", resp.Version)
	require.Equal(t, 1, exec.calls)
	require.Equal(t, "session-1", exec.in.SessionID())
}

func TestHandle_SkillIDCheck(t *testing.T) {
	cases := []struct {
		name    string
		skillID string
		appID   string
		wantErr bool
	}{
		{name: "matching", skillID: "amzn1.ask.skill.1", appID: "amzn1.ask.skill.1"},
		{name: "mismatch", skillID: "amzn1.ask.skill.1", appID: "amzn1.ask.skill.2", wantErr: true},
		{name: "missing app id", skillID: "amzn1.ask.skill.1", appID: "", wantErr: true},
		{name: "check disabled", skillID: " ", appID: "anything"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &stubExecutor{}
			h, err := NewHandler(exec, WithSkillID(tc.skillID))
			require.NoError(t, err)

			_, err = h.Handle(context.Background(), makeEnvelope(tc.appID))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrSkillMismatch)
				require.Zero(t, exec.calls)
				return
			}
			require.NoError(t, err)
			require.Equal(t, 1, exec.calls)
		})
	}
}

func TestHandle_ExecutorError(t *testing.T) {
	cause := &skill.Error{Code: skill.ErrorInvalidRequest, Reason: "unsupported_request_type"}
	h, err := NewHandler(&stubExecutor{err: cause})
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), makeEnvelope("appId"))
	require.Error(t, err)

	var skillErr *skill.Error
	require.True(t, errors.As(err, &skillErr))
	require.Equal(t, skill.ErrorInvalidRequest, skillErr.Code)
}

func TestCorrelationID(t *testing.T) {
	orig := newCorrelationID
	newCorrelationID = func() string { return "generated" }
	t.Cleanup(func() { newCorrelationID = orig })

	env := makeEnvelope("appId")
	lambdaCtx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "aws-req"})
	require.Equal(t, "aws-req", correlationID(lambdaCtx, env))
	require.Equal(t, "req-1", correlationID(context.Background(), env))

	env.Request.RequestID = ""
	require.Equal(t, "generated", correlationID(context.Background(), env))
}

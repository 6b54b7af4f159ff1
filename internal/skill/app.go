package skill

import (
	"context"
	"errors"
	"log/slog"

	"skill-analytics/internal/alexa"
	"skill-analytics/internal/domain"
)

const (
	responseVersion = "1.0"
	stateAttribute  = "state"
	stateEntry      = "entry"
	stateDie        = "die"

	// LaunchIntent receives LaunchRequests.
	LaunchIntent = "LaunchIntent"
)

// Transition is what an intent handler decides for a turn.
type Transition struct {
	Say      []string
	Reprompt string
	// To is the next dialog state; empty means "entry", or "die" when End
	// is set.
	To  string
	End bool
}

type IntentHandler func(ctx context.Context, env *alexa.RequestEnvelope) (Transition, error)

// ErrorHandler turns a failed turn into a reply.
type ErrorHandler func(ctx context.Context, env *alexa.RequestEnvelope, err error) Transition

// App routes Alexa requests to intent handlers and runs lifecycle hooks
// around each reply.
type App struct {
	intents      map[string]IntentHandler
	sessionEnded IntentHandler
	onError      ErrorHandler
	beforeReply  []domain.TurnHook
	endHooks     []domain.TurnHook
}

func NewApp() *App {
	return &App{
		intents: make(map[string]IntentHandler),
		onError: defaultErrorHandler,
	}
}

func defaultErrorHandler(context.Context, *alexa.RequestEnvelope, error) Transition {
	return Transition{Say: []string{"Sorry, something went wrong."}}
}

// OnIntent registers h for the named intent, replacing any earlier handler.
func (a *App) OnIntent(name string, h IntentHandler) {
	a.intents[name] = h
}

func (a *App) OnSessionEndedRequest(h IntentHandler) {
	a.sessionEnded = h
}

func (a *App) OnError(h ErrorHandler) {
	if h == nil {
		h = defaultErrorHandler
	}
	a.onError = h
}

// OnBeforeReplySent hooks run once per turn after the reply is built.
func (a *App) OnBeforeReplySent(hook domain.TurnHook) {
	a.beforeReply = append(a.beforeReply, hook)
}

// OnSessionEnded hooks run for a SessionEndedRequest and for any turn whose
// reply closes the session.
func (a *App) OnSessionEnded(hook domain.TurnHook) {
	a.endHooks = append(a.endHooks, hook)
}

// Execute handles one request. Only malformed requests return an error;
// handler failures become the error handler's reply.
func (a *App) Execute(ctx context.Context, env alexa.RequestEnvelope) (alexa.ResponseEnvelope, error) {
	tr, err := a.dispatch(ctx, &env)
	if err != nil {
		var skillErr *Error
		if errors.As(err, &skillErr) && skillErr.Code == ErrorInvalidRequest {
			return alexa.ResponseEnvelope{}, err
		}
		slog.ErrorContext(ctx, "intent handling failed",
			"request_type", env.Request.Type,
			"intent", env.IntentName(),
			"err", err)
		tr = a.onError(ctx, &env, err)
	}

	resp := buildResponse(&env, tr)
	turn := buildTurn(&env, tr, resp)

	if env.Request.Type == alexa.RequestTypeSessionEnded {
		runHooks(ctx, a.endHooks, turn)
		return resp, nil
	}
	runHooks(ctx, a.beforeReply, turn)
	if tr.End {
		runHooks(ctx, a.endHooks, turn)
	}
	return resp, nil
}

func (a *App) dispatch(ctx context.Context, env *alexa.RequestEnvelope) (Transition, error) {
	var (
		name string
		h    IntentHandler
	)
	switch env.Request.Type {
	case alexa.RequestTypeLaunch:
		name = LaunchIntent
		h = a.intents[name]
	case alexa.RequestTypeIntent:
		name = env.IntentName()
		if name == "" {
			return Transition{}, newError(ErrorInvalidRequest, "missing_intent", nil)
		}
		h = a.intents[name]
	case alexa.RequestTypeSessionEnded:
		if a.sessionEnded == nil {
			return Transition{End: true}, nil
		}
		name = alexa.RequestTypeSessionEnded
		h = a.sessionEnded
	default:
		return Transition{}, newError(ErrorInvalidRequest, "unsupported_request_type:"+env.Request.Type, nil)
	}

	if h == nil {
		return Transition{}, newError(ErrorUnknownIntent, name, nil)
	}
	tr, err := h(ctx, env)
	if err != nil {
		return Transition{}, newError(ErrorHandlerError, name, err)
	}
	return tr, nil
}

func buildResponse(env *alexa.RequestEnvelope, tr Transition) alexa.ResponseEnvelope {
	attrs := make(map[string]any)
	if env.Session != nil {
		for k, v := range env.Session.Attributes {
			attrs[k] = v
		}
	}
	state := tr.To
	switch {
	case tr.End:
		state = stateDie
	case state == "":
		state = stateEntry
	}
	attrs[stateAttribute] = state

	resp := alexa.ResponseEnvelope{
		Version:           responseVersion,
		SessionAttributes: attrs,
		Response:          alexa.Response{ShouldEndSession: tr.End},
	}
	if len(tr.Say) > 0 {
		resp.Response.OutputSpeech = &alexa.OutputSpeech{
			Type: alexa.SpeechTypeSSML,
			SSML: alexa.SSML(tr.Say...),
		}
	}
	if tr.Reprompt != "" && !tr.End {
		resp.Response.Reprompt = &alexa.Reprompt{OutputSpeech: alexa.OutputSpeech{
			Type: alexa.SpeechTypeSSML,
			SSML: alexa.SSML(tr.Reprompt),
		}}
	}
	return resp
}

func buildTurn(env *alexa.RequestEnvelope, tr Transition, resp alexa.ResponseEnvelope) domain.Turn {
	turn := domain.Turn{
		RequestType: env.Request.Type,
		IntentName:  env.IntentName(),
		Slots:       env.SlotValues(),
		SessionID:   env.SessionID(),
		UserID:      env.UserID(),
		Platform:    alexa.PlatformName,
		Reply:       domain.Reply{Statements: tr.Say},
	}
	if speech := resp.Response.OutputSpeech; speech != nil {
		turn.Reply.SSML = speech.SSML
		turn.Reply.Text = speech.Text
	}
	return turn
}

func runHooks(ctx context.Context, hooks []domain.TurnHook, turn domain.Turn) {
	for _, hook := range hooks {
		hook(ctx, turn)
	}
}

// Package dialog is the sample conversation the skill runs: a greeting that
// asks a question, help, and the exits.
package dialog

import (
	"context"
	"log/slog"

	"skill-analytics/internal/alexa"
	"skill-analytics/internal/skill"
)

const stateQuestion = "question"

// Register installs the dialog's intent, session-ended and error handlers.
func Register(app *skill.App) {
	app.OnIntent(skill.LaunchIntent, launch)
	app.OnIntent("TimeIntent", answer)
	app.OnIntent("AMAZON.HelpIntent", help)
	app.OnIntent("AMAZON.StopIntent", exit)
	app.OnIntent("AMAZON.CancelIntent", exit)
	app.OnIntent("AMAZON.FallbackIntent", exit)
	app.OnSessionEndedRequest(sessionEnded)
	app.OnError(badInput)
}

func launch(context.Context, *alexa.RequestEnvelope) (skill.Transition, error) {
	return skill.Transition{
		Say:      []string{view("LaunchIntent.OpenResponse"), view("Question.Ask")},
		Reprompt: view("Question.Reprompt"),
		To:       stateQuestion,
	}, nil
}

// answer accepts the user's time and closes the conversation. Without a time
// slot the question is asked again.
func answer(_ context.Context, env *alexa.RequestEnvelope) (skill.Transition, error) {
	if env.SlotValues()["time"] == "" {
		return skill.Transition{
			Say:      []string{view("Question.Ask")},
			Reprompt: view("Question.Reprompt"),
			To:       stateQuestion,
		}, nil
	}
	return skill.Transition{Say: []string{view("ExitIntent.GeneralExit")}, End: true}, nil
}

func help(context.Context, *alexa.RequestEnvelope) (skill.Transition, error) {
	return skill.Transition{
		Say:      []string{view("HelpIntent.Response")},
		Reprompt: view("Question.Reprompt"),
		To:       stateQuestion,
	}, nil
}

func exit(context.Context, *alexa.RequestEnvelope) (skill.Transition, error) {
	return skill.Transition{Say: []string{view("ExitIntent.GeneralExit")}, End: true}, nil
}

func sessionEnded(ctx context.Context, env *alexa.RequestEnvelope) (skill.Transition, error) {
	if e := env.Request.Error; e != nil {
		slog.WarnContext(ctx, "session ended with error",
			"reason", env.Request.Reason,
			"error_type", e.Type,
			"error_message", e.Message)
	}
	return skill.Transition{End: true}, nil
}

func badInput(context.Context, *alexa.RequestEnvelope, error) skill.Transition {
	return skill.Transition{
		Say:      []string{view("BadInput.RepeatLastAsk")},
		Reprompt: view("Question.Reprompt"),
		To:       stateQuestion,
	}
}

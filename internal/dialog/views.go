package dialog

// views holds every phrase the skill speaks, keyed by "Path.Key".
var views = map[string]string{
	"LaunchIntent.OpenResponse": "Hello! How are you?",
	"Question.Ask":              "What time is it?",
	"Question.Reprompt":         "Tell me what time it is.",
	"HelpIntent.Response":       "You can tell me the time, or say stop to leave.",
	"ExitIntent.GeneralExit":    "Ok. Goodbye.",
	"BadInput.RepeatLastAsk":    "I'm sorry. I didn't understand.",
}

// view returns the phrase for key, or key itself when no phrase exists.
func view(key string) string {
	if v, ok := views[key]; ok {
		return v
	}
	return key
}

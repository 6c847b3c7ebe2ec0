package funnel

// Texts holds the fixed, non-localized copy.  Step texts and the final
// button label come from the scenario bundle instead.
type Texts struct {
	Welcome       string
	VerifyButton  string
	NextButton    string
	ClientDenied  string
	Malformed     string
	LookupFailed  string
	Banned        string
	LinkIntro     string
	StaleSession  string
	TemporaryFail string
}

// DefaultTexts returns the stock English copy.
func DefaultTexts() Texts {
	return Texts{
		Welcome:       "Welcome! To continue, please verify your location.",
		VerifyButton:  "✅ Verify Location",
		NextButton:    "Next ➡️",
		ClientDenied:  "Could not determine your location. Please try again.",
		Malformed:     "Invalid location data format. Please try again.",
		LookupFailed:  "There was an error verifying your location. Please try again later.",
		Banned:        "Sorry, our service is not available in your country.",
		LinkIntro:     "Here is your personal link to the platform:",
		StaleSession:  "Error: Could not find your data. Please restart the bot with /start.",
		TemporaryFail: "Something went wrong on our side. Please try again in a moment.",
	}
}

// withDefaults fills empty fields from DefaultTexts.
func (t Texts) withDefaults() Texts {
	d := DefaultTexts()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&t.Welcome, d.Welcome)
	fill(&t.VerifyButton, d.VerifyButton)
	fill(&t.NextButton, d.NextButton)
	fill(&t.ClientDenied, d.ClientDenied)
	fill(&t.Malformed, d.Malformed)
	fill(&t.LookupFailed, d.LookupFailed)
	fill(&t.Banned, d.Banned)
	fill(&t.LinkIntro, d.LinkIntro)
	fill(&t.StaleSession, d.StaleSession)
	fill(&t.TemporaryFail, d.TemporaryFail)
	return t
}

package scenario

import "github.com/parleyworks/parley/internal/telemetry"

var builtinPatterns = []telemetry.TargetPattern{
	{
		ID:         "STANDARD-01",
		Label:      "Collaborative opener",
		Text:       "I believe we can find terms that work for both sides",
		Difficulty: telemetry.TierStandard,
	},
	{
		ID:         "STANDARD-02",
		Label:      "Interest probe",
		Text:       "Help me understand what matters most to you in this deal",
		Difficulty: telemetry.TierStandard,
	},
	{
		ID:         "HIGH_YIELD-01",
		Label:      "Calibrated anchor",
		Text:       "Given the value we bring, anything below this range leaves money on the table for both of us",
		Difficulty: telemetry.TierHighYield,
	},
	{
		ID:         "HIGH_YIELD-02",
		Label:      "Concession trade",
		Text:       "I can move on timing if you can move on price",
		Difficulty: telemetry.TierHighYield,
	},
	{
		ID:         "HOSTILE_TAKEOVER-01",
		Label:      "Pressure deflection",
		Text:       "Raising your voice does not change the numbers on this page",
		Difficulty: telemetry.TierHostileTakeover,
	},
	{
		ID:         "HOSTILE_TAKEOVER-03",
		Label:      "Anchored refusal",
		Text:       "I refuse your terms and I am prepared to walk away",
		Difficulty: telemetry.TierHostileTakeover,
	},
}

var builtinScripts = map[string]script{
	"STANDARD-01": {
		triggers: []trigger{
			{keyword: "price", reply: "Price is one lever. What flexibility do you have on the delivery schedule?"},
			{keyword: "agree", reply: "Good. Let's write that down before either of us changes our mind."},
		},
		fallbacks: []string{
			"Interesting. Walk me through how you arrived at that position.",
			"I hear you. What would a good outcome look like from your side?",
			"Let's set that aside for a moment and talk about what we both actually need.",
		},
	},
	"HIGH_YIELD-01": {
		triggers: []trigger{
			{keyword: "budget", reply: "Budgets are built from priorities. If this matters, the budget follows."},
			{keyword: "discount", reply: "A discount without a concession from your side is just me paying for your approval."},
		},
		fallbacks: []string{
			"That anchor is ambitious. Justify it and I'll take it seriously.",
			"Numbers without reasoning are just noise. What's behind yours?",
		},
	},
	"HOSTILE_TAKEOVER-03": {
		triggers: []trigger{
			{keyword: "refuse", reply: "Refusal is a position, not a strategy. My offer expires at the close of business."},
			{keyword: "walk", reply: "Then walk. The door costs you more than the deal does."},
			{keyword: "lawyer", reply: "Bring your lawyers. Mine are already billing."},
		},
		fallbacks: []string{
			"You're stalling. Every minute of delay moves the terms against you.",
			"Sentiment doesn't survive due diligence. Give me a number.",
			"I've acquired companies that negotiated harder than this before lunch.",
		},
	},
}

var defaultScript = script{
	fallbacks: []string{
		"Go on. I'm listening.",
		"That's one way to frame it. Convince me.",
		"And what do you expect me to do with that?",
	},
}

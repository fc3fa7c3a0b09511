package service

import "github.com/keelwise/keel/internal/models"

// Business types with pattern-specific context rules.
const (
	BusinessCharter    = "charter"
	BusinessManagement = "yacht_management"
)

// Context flags reported as indicators.
const (
	flagLowEnergy      = "low_energy"
	flagBusinessType   = "business_type"
	indicatorSentiment = "low_sentiment"
	indicatorIntent    = "ml_intent"
)

// Scoring weights.
const (
	keywordWeight = 0.3
	intentWeight  = 0.4
)

type contextRule struct {
	flag  string
	bonus float64
	match func(rc *models.RequestContext) bool
}

type patternDef struct {
	name        string
	keywords    []string
	indicators  []string
	threshold   float64 // sentiment score below which the bonus applies
	bonus       float64
	context     []contextRule
	priority    string
	style       string
	description string
	suggestions []string
}

func lowEnergy(bonus float64) contextRule {
	return contextRule{flag: flagLowEnergy, bonus: bonus, match: (*models.RequestContext).LowEnergy}
}

func businessIs(bonus float64, types ...string) contextRule {
	return contextRule{
		flag:  flagBusinessType,
		bonus: bonus,
		match: func(rc *models.RequestContext) bool {
			for _, t := range types {
				if rc.BusinessType == t {
					return true
				}
			}

			return false
		},
	}
}

// taxonomy is scored in declaration order; equal confidences keep this order.
var taxonomy = []patternDef{
	{
		name:        models.PatternProcrastination,
		keywords:    []string{"tomorrow", "later", "maybe", "someday", "put off", "eventually", "deal with it", "next week", "get around to"},
		indicators:  []string{"delay_language", "deferred_commitment"},
		threshold:   0.5,
		bonus:       0.2,
		context:     []contextRule{lowEnergy(0.1)},
		priority:    models.PriorityNormal,
		style:       models.StyleMotivational,
		description: "Putting off maintenance that is cheaper and safer to handle now.",
		suggestions: []string{
			"Pick the single smallest task and do it in the next 15 minutes",
			"Book a fixed slot in the week for this job",
			"Note what waiting will cost if the issue gets worse",
		},
	},
	{
		name:        models.PatternPerfectionism,
		keywords:    []string{"perfect", "exactly right", "flawless", "not good enough", "every detail", "just right"},
		indicators:  []string{"high_standards", "all_or_nothing"},
		threshold:   0.4,
		bonus:       0.2,
		context:     []contextRule{businessIs(0.1, BusinessCharter)},
		priority:    models.PriorityNormal,
		style:       models.StyleGentle,
		description: "Holding a job back until every detail is ideal.",
		suggestions: []string{
			"Define what good enough looks like for this job",
			"Ship the safe version first and refine on the next haul-out",
		},
	},
	{
		name:        models.PatternOverwhelm,
		keywords:    []string{"overwhelmed", "too much", "drowning", "can't keep up", "so many", "everything at once"},
		indicators:  []string{"load_language", "many_open_items"},
		threshold:   0.4,
		bonus:       0.25,
		context:     []contextRule{lowEnergy(0.15), businessIs(0.1, BusinessCharter, BusinessManagement)},
		priority:    models.PriorityNormal,
		style:       models.StyleGentle,
		description: "Too many open items competing for attention at once.",
		suggestions: []string{
			"List everything, then mark the one item that affects safety",
			"Hand off or schedule two items you do not need to do yourself",
		},
	},
	{
		name:        models.PatternAcuteFrustration,
		keywords:    []string{"frustrated", "fed up", "sick of", "again?!", "broken again", "nothing works", "ridiculous"},
		indicators:  []string{"repeat_failure", "strong_negative"},
		threshold:   0.3,
		bonus:       0.25,
		context:     []contextRule{businessIs(0.1, BusinessCharter)},
		priority:    models.PriorityCritical,
		description: "Strong frustration after a repeated or unresolved failure.",
		suggestions: []string{
			"Get the root cause checked instead of another quick fix",
			"Ask for a warranty or service escalation",
		},
	},
	{
		name:        models.PatternDecisionParalysis,
		keywords:    []string{"can't decide", "not sure which", "should i", "torn between", "which one", "too many options"},
		indicators:  []string{"choice_language", "comparison"},
		threshold:   0.5,
		bonus:       0.2,
		context:     []contextRule{businessIs(0.1, BusinessManagement)},
		priority:    models.PriorityNormal,
		style:       models.StyleDirect,
		description: "Stuck comparing options without committing to one.",
		suggestions: []string{
			"Pick the two options that matter and compare only cost and downtime",
			"Set a deadline for the decision",
		},
	},
	{
		name:        models.PatternBurnout,
		keywords:    []string{"exhausted", "burned out", "burnt out", "no energy", "tired of", "can't anymore"},
		indicators:  []string{"fatigue_language", "withdrawal"},
		threshold:   0.4,
		bonus:       0.25,
		context:     []contextRule{lowEnergy(0.15), businessIs(0.1, BusinessCharter)},
		priority:    models.PriorityNormal,
		style:       models.StyleGentle,
		description: "Running low after a long stretch of work on the boat or the business.",
		suggestions: []string{
			"Block a day with no boat work this week",
			"Move recurring checks to a service contract",
		},
	},
}

var taxonomyByName = func() map[string]*patternDef {
	m := make(map[string]*patternDef, len(taxonomy))
	for i := range taxonomy {
		m[taxonomy[i].name] = &taxonomy[i]
	}

	return m
}()

// patternStyle returns the pattern's default presentation style, or "".
func patternStyle(name string) string {
	if def, ok := taxonomyByName[name]; ok {
		return def.style
	}

	return ""
}

// PatternNames lists the taxonomy in declaration order.
func PatternNames() []string {
	names := make([]string, len(taxonomy))
	for i, def := range taxonomy {
		names[i] = def.name
	}

	return names
}

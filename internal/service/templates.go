package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/keelwise/keel/internal/models"
)

// Template variants besides business types.
const (
	variantLowEnergy = "low_energy"
	variantHighTrust = "high_trust"
	variantDefault   = "default"
)

// templates maps pattern to variant to body. Every pattern has a default variant.
var templates = map[string]map[string]string{
	models.PatternProcrastination: {
		variantDefault:   "Looks like this one keeps sliding, {name}. Small jobs on a boat rarely stay small. Pick one step from the list above and do it today.",
		variantLowEnergy: "Low on energy is fine, {name}. Do just the first step above, ten minutes, and let the rest wait.",
		BusinessCharter:  "Every week this waits is a week it can cost you a charter. Book the first step now so the {business_type} calendar stays clean.",
		variantHighTrust: "This reads as {pattern} ({confidence}). Block 30 minutes today and get it done.",
	},
	models.PatternPerfectionism: {
		variantDefault:   "This does not need to be perfect to be safe, {name}. Decide what good enough looks like and start with that.",
		variantLowEnergy: "Aim for done, not perfect. The safe version is enough for now.",
		BusinessCharter:  "Guests notice reliability more than polish. Get the safe fix in place for your {business_type} and refine it at the next haul-out.",
		variantHighTrust: "Straight talk: the last 10% of polish is holding up the first 90%. Ship the safe version.",
	},
	models.PatternOverwhelm: {
		variantDefault:     "That is a lot at once, {name}. Start with the one item that affects safety and park the rest for now.",
		variantLowEnergy:   "With {energy} energy, pick one thing only: the safety item. Everything else can wait a day.",
		BusinessCharter:    "Charter season piles it on. Split the list into guest-facing and everything else, and hand off what you can.",
		BusinessManagement: "Across a managed fleet, triage beats effort. Sort by safety first, then by which boat goes out next.",
		variantHighTrust:   "Cut the list in half. Keep the safety item and the next departure. Delegate or drop the rest.",
	},
	models.PatternAcuteFrustration: {
		variantDefault:   "Having the same thing fail again is maddening, {name}. It is worth getting the root cause checked rather than another quick fix.",
		variantLowEnergy: "Repeated failures are exhausting. One call to get the root cause looked at will save the next round.",
		BusinessCharter:  "A repeat failure on a {business_type} boat costs more than the part. Escalate it with your service provider or warranty.",
		variantHighTrust: "This has failed before, so the fix did not hold. Push for a root-cause diagnosis this time.",
	},
	models.PatternDecisionParalysis: {
		variantDefault:     "When the options look alike, compare only cost and downtime, {name}, and pick by Friday.",
		variantLowEnergy:   "Keep it simple: pick the option with the shortest downtime. You can revisit later.",
		BusinessManagement: "For the fleet, standardize: pick the option you can repeat on every boat.",
		variantHighTrust:   "Pick the first option. Either works, and waiting costs more than the difference.",
	},
	models.PatternBurnout: {
		variantDefault:   "You have been carrying a lot, {name}. Block one day this week with no boat work.",
		variantLowEnergy: "Running on {energy} energy is a signal. Move one recurring job to a service contract and rest.",
		BusinessCharter:  "Between charters there is no off-season for you. Hand the routine checks to a contractor this month.",
		variantHighTrust: "You need a break more than another checklist. Take the day.",
	},
}

// selectTemplate picks the variant for rc: low energy, then business type, then high trust, then default.
func selectTemplate(pattern string, rc *models.RequestContext) (string, string, bool) {
	variants, ok := templates[pattern]
	if !ok {
		return "", "", false
	}

	if rc != nil {
		if rc.LowEnergy() {
			if t, ok := variants[variantLowEnergy]; ok {
				return t, variantLowEnergy, true
			}
		}

		if rc.BusinessType != "" {
			if t, ok := variants[rc.BusinessType]; ok {
				return t, rc.BusinessType, true
			}
		}

		if rc.HighTrust() {
			if t, ok := variants[variantHighTrust]; ok {
				return t, variantHighTrust, true
			}
		}
	}

	t, ok := variants[variantDefault]

	return t, variantDefault, ok
}

// renderTemplate substitutes {pattern}, {confidence}, {business_type}, {energy} and {name}.
func renderTemplate(tmpl string, p *models.Pattern, rc *models.RequestContext) string {
	if rc == nil {
		rc = &models.RequestContext{}
	}

	name := rc.UserName
	if name == "" {
		name = "there"
	}

	business := rc.BusinessType
	if business == "" {
		business = "business"
	}

	energy := rc.EnergyLevel
	if energy == "" {
		energy = models.EnergyMedium
	}

	r := strings.NewReplacer(
		"{pattern}", strings.ReplaceAll(p.Name, "_", " "),
		"{confidence}", fmt.Sprintf("%d%%", int(math.Round(p.Confidence*100))),
		"{business_type}", strings.ReplaceAll(business, "_", " "),
		"{energy}", energy,
		"{name}", name,
	)

	return r.Replace(tmpl)
}

package service

import "github.com/keelwise/keel/internal/models"

// SelectStyle picks exactly one presentation style: urgent for critical patterns, gentle for
// low energy, direct for high trust, then the pattern's own default, else callout.
func SelectStyle(p *models.Pattern, rc *models.RequestContext) string {
	switch {
	case p.IsCritical():
		return models.StyleUrgent
	case rc.LowEnergy():
		return models.StyleGentle
	case rc.HighTrust():
		return models.StyleDirect
	}

	if p != nil {
		if s := patternStyle(p.Name); s != "" {
			return s
		}
	}

	return models.StyleCallout
}

var stylePrefixes = map[string]string{
	models.StyleUrgent:       "**Important:** ",
	models.StyleGentle:       "A gentle thought: ",
	models.StyleDirect:       "**Bottom line:** ",
	models.StyleMotivational: "**You've got this.** ",
	models.StyleCallout:      "> **Insight:** ",
}

// FormatEnhancement appends body to original in the given style.
func FormatEnhancement(original, body, style string) string {
	prefix, ok := stylePrefixes[style]
	if !ok {
		prefix = stylePrefixes[models.StyleCallout]
	}

	return original + "\n\n" + prefix + body
}

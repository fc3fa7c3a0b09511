package service

import (
	"regexp"
	"sort"
	"strings"

	"github.com/keelwise/keel/internal/models"
)

// FallbackProvider is the provider name recorded on rule-based results.
const FallbackProvider = "fallback"

// Rule-based confidences.
const (
	fallbackMatchConfidence   = 0.6
	fallbackDefaultConfidence = 0.5
)

type intentRule struct {
	intent   string
	keywords []string
}

// intentRules are checked in order; the first rule with a keyword hit wins.
var intentRules = []intentRule{
	{models.PatternProcrastination, []string{"tomorrow", "later", "maybe", "someday", "put off", "eventually", "deal with it"}},
	{models.PatternPerfectionism, []string{"perfect", "exactly right", "flawless", "not good enough"}},
	{models.PatternOverwhelm, []string{"overwhelmed", "too much", "drowning", "can't keep up", "so many"}},
	{models.PatternAcuteFrustration, []string{"frustrated", "fed up", "sick of", "again?!", "broken again", "nothing works"}},
	{IntentScheduling, []string{"schedule", "book", "appointment", "calendar"}},
	{IntentMaintenanceRequest, []string{"repair", "fix", "service", "replace", "leak", "engine"}},
}

// fallbackIntent classifies text with keyword rules.
func fallbackIntent(text string) *models.IntentResult {
	lower := strings.ToLower(text)

	for _, rule := range intentRules {
		if containsAny(lower, rule.keywords) {
			return &models.IntentResult{
				Provider:   FallbackProvider,
				Primary:    rule.intent,
				Labels:     map[string]float64{rule.intent: fallbackMatchConfidence},
				Confidence: fallbackMatchConfidence,
			}
		}
	}

	return &models.IntentResult{
		Provider:   FallbackProvider,
		Primary:    IntentGeneralInquiry,
		Labels:     map[string]float64{IntentGeneralInquiry: fallbackDefaultConfidence},
		Confidence: fallbackDefaultConfidence,
	}
}

var (
	positiveWords = []string{
		"great", "good", "thanks", "thank you", "love", "excellent", "happy", "perfect",
		"awesome", "smooth", "appreciate", "glad",
	}
	negativeWords = []string{
		"bad", "broken", "frustrated", "angry", "hate", "terrible", "awful", "worried",
		"problem", "fail", "leak", "stuck", "overwhelmed", "sick of", "fed up",
	}
)

// fallbackSentiment scores text by counting positive and negative words.
func fallbackSentiment(text string) *models.SentimentResult {
	lower := strings.ToLower(text)
	net := countAny(lower, positiveWords) - countAny(lower, negativeWords)

	res := &models.SentimentResult{Provider: FallbackProvider}

	switch {
	case net > 0:
		res.Label, res.Score = models.SentimentPositive, models.SentimentScorePositive
	case net < 0:
		res.Label, res.Score = models.SentimentNegative, models.SentimentScoreNegative
	default:
		res.Label, res.Score = models.SentimentNeutral, models.SentimentScoreNeutral
	}

	return res
}

// Entity groups produced by the fallback extractor.
const (
	EntityMoney    = "money"
	EntityDate     = "date"
	EntityDuration = "duration"
	EntityPart     = "part"
)

var entityPatterns = []struct {
	group string
	re    *regexp.Regexp
}{
	{EntityMoney, regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{1,2})?`)},
	{EntityDate, regexp.MustCompile(`(?i)\b(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|today|tomorrow|\d{1,2}/\d{1,2}(?:/\d{2,4})?)\b`)},
	{EntityDuration, regexp.MustCompile(`(?i)\b\d+\s?(?:minutes?|mins?|hours?|hrs?|days?|weeks?|months?)\b`)},
	{EntityPart, regexp.MustCompile(`(?i)\b(?:engine|hull|bilge pump|generator|propeller|rudder|anchor|winch|sail|mast|battery|batteries|impeller|watermaker|outboard|keel)\b`)},
}

// fallbackEntities extracts money, dates, durations and vessel parts with regular expressions.
func fallbackEntities(text string) *models.EntityResult {
	groups := make(map[string][]models.Entity)

	for _, p := range entityPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			groups[p.group] = append(groups[p.group], models.Entity{
				Text:  text[loc[0]:loc[1]],
				Score: 1,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}

	for _, ents := range groups {
		sort.SliceStable(ents, func(i, j int) bool { return ents[i].Start < ents[j].Start })
	}

	return &models.EntityResult{Provider: FallbackProvider, Groups: groups}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}

	return false
}

func countAny(s string, words []string) int {
	n := 0

	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}

	return n
}

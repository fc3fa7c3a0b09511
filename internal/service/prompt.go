package service

import (
	"fmt"
	"strings"

	"github.com/keelwise/keel/internal/models"
)

const enhancementMaxTokens = 400

const enhancementSystemPrompt = `You help boat owners who run or maintain yachts. You are given an answer that was
already written for them and a behavioral pattern detected in their message. Rewrite the
answer so it stays factually identical but adds one short, practical insight that addresses
the pattern. Keep the original structure, do not invent facts, keep it under 180 words and
return only the rewritten answer.`

// BuildEnhancementPrompt builds the generation prompt: pattern, sentiment, user context and original answer.
func BuildEnhancementPrompt(original string, analysis *models.AnalysisResult, rc models.RequestContext) models.Prompt {
	var b strings.Builder

	pattern := analysis.TopIntent()
	if pattern == "" {
		pattern = IntentGeneralInquiry
	}

	fmt.Fprintf(&b, "Detected pattern: %s (confidence %.2f)\n", pattern, analysis.Confidence())

	if analysis != nil && analysis.Sentiment != nil {
		fmt.Fprintf(&b, "Sentiment: %s (%.2f)\n", analysis.Sentiment.Label, analysis.Sentiment.Score)
	}

	if rc.BusinessType != "" {
		fmt.Fprintf(&b, "Business type: %s\n", rc.BusinessType)
	}

	if rc.EnergyLevel != "" {
		fmt.Fprintf(&b, "Energy level: %s\n", rc.EnergyLevel)
	}

	if rc.UserName != "" {
		fmt.Fprintf(&b, "User name: %s\n", rc.UserName)
	}

	fmt.Fprintf(&b, "\nOriginal answer:\n%s\n", original)

	return models.Prompt{
		System:    enhancementSystemPrompt,
		User:      b.String(),
		MaxTokens: enhancementMaxTokens,
	}
}

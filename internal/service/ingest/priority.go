package ingest

import (
	"strings"

	"github.com/huavcjj/followup/internal/domain/tracking"
)

var (
	highPriorityTerms   = []string{"interview", "urgent", "important", "deadline", "proposal"}
	mediumPriorityTerms = []string{"follow up", "follow-up", "checking in", "update"}
)

const (
	highTermScore   = 3
	mediumTermScore = 2
	keywordScore    = 1

	highThreshold   = 5
	mediumThreshold = 3
)

// Score rates how urgently a sent message needs a follow-up. Terms match as
// case-insensitive substrings of the subject or the body.
func Score(subject, body, keywords string, daysSince int) int {
	subject = strings.ToLower(subject)
	body = strings.ToLower(body)
	contains := func(term string) bool {
		return strings.Contains(subject, term) || strings.Contains(body, term)
	}

	score := 0
	for _, term := range highPriorityTerms {
		if contains(term) {
			score += highTermScore
		}
	}
	for _, term := range mediumPriorityTerms {
		if contains(term) {
			score += mediumTermScore
		}
	}
	for _, kw := range SplitKeywords(keywords) {
		if contains(strings.ToLower(kw)) {
			score += keywordScore
		}
	}

	switch {
	case daysSince > 7:
		score += 2
	case daysSince > 3:
		score += 1
	}

	return score
}

func Classify(score int) tracking.Priority {
	switch {
	case score >= highThreshold:
		return tracking.PriorityHigh
	case score >= mediumThreshold:
		return tracking.PriorityMedium
	default:
		return tracking.PriorityLow
	}
}

func Prioritize(subject, body, keywords string, daysSince int) tracking.Priority {
	return Classify(Score(subject, body, keywords, daysSince))
}

package analytics

import "strings"

var anxiousKeywords = []string{
	"worried", "anxious", "nervous", "scared", "afraid", "confused",
	"don't know", "not sure", "help me", "stressed", "pressure",
}

var confidentKeywords = []string{
	"ready", "prepared", "confident", "excited", "looking forward",
	"i can", "i will", "let's do", "bring it on",
}

var technicalKeywords = []string{
	"algorithm", "code", "programming", "technical", "interview question",
	"data structure", "leetcode", "coding", "debug", "implement",
}

// DetectSentiment buckets a message into anxious, confident, technical, or
// neutral. Categories are checked in that order; the first hit wins.
func DetectSentiment(message string) string {
	lower := strings.ToLower(message)

	for _, kw := range anxiousKeywords {
		if strings.Contains(lower, kw) {
			return "anxious"
		}
	}
	for _, kw := range confidentKeywords {
		if strings.Contains(lower, kw) {
			return "confident"
		}
	}
	for _, kw := range technicalKeywords {
		if strings.Contains(lower, kw) {
			return "technical"
		}
	}
	return "neutral"
}

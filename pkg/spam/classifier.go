package spam

import (
	"fmt"
	"math"
	"strings"

	"github.com/dlclark/regexp2"
)

const (
	minLength = 2
	maxLength = 2000

	shortScore      = 20
	longScore       = 15
	patternScore    = 25
	keywordScore    = 20
	entropyScore    = 30
	repetitionScore = 10

	entropyMinLength = 10
	entropyThreshold = 4.5

	spamThreshold = 40
)

// suspiciousPatterns index order is part of the contract: flags are
// emitted as pattern_<index>. regexp2 is used because the repeated-run
// and repeated-substring patterns need backreferences, which Go's RE2
// engine does not support.
var suspiciousPatterns = []*regexp2.Regexp{
	regexp2.MustCompile(`(?i)\b(?:free|buy|cheap|get)\s+(?:followers|likes|subscribers|views)\b`, regexp2.None),
	regexp2.MustCompile(`https?://\S+`, regexp2.None),
	regexp2.MustCompile(`\d{16,}`, regexp2.None),
	regexp2.MustCompile(`(.)\1{15,}`, regexp2.None),
	regexp2.MustCompile(`(.{20,})\1{3,}`, regexp2.None),
}

// repetitionPattern matches a single character repeated 11 or more
// times; the count of non-overlapping matches scales the penalty.
var repetitionPattern = regexp2.MustCompile(`(.)\1{10,}`, regexp2.None)

var spamKeywords = []string{
	"casino",
	"jackpot",
	"lottery",
	"viagra",
	"cialis",
	"xxx",
	"porn",
	"escort",
	"bet now",
	"free money",
	"get rich",
	"double your",
	"crypto giveaway",
	"investment opportunity",
	"hot singles",
	"bit.ly",
	"tinyurl",
}

// Score is the classifier output for a single prompt.
type Score struct {
	IsSpam bool     `json:"is_spam"`
	Score  int      `json:"score"`
	Flags  []string `json:"flags,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

// Classifier is a stateless heuristic scorer over a single input
// string. It does no I/O and holds no mutable state, so it is safe to
// run fully in parallel across requests.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Analyze scores the text against every signal. Signals accumulate;
// none short-circuits the others.
func (c *Classifier) Analyze(text string) Score {
	var result Score
	runes := []rune(text)

	if len(runes) < minLength {
		result.Score += shortScore
		result.Flags = append(result.Flags, "too_short")
	}
	if len(runes) > maxLength {
		result.Score += longScore
		result.Flags = append(result.Flags, "too_long")
	}

	for i, pattern := range suspiciousPatterns {
		matched, err := pattern.MatchString(text)
		if err != nil || !matched {
			continue
		}
		result.Score += patternScore
		result.Flags = append(result.Flags, fmt.Sprintf("pattern_%d", i))
	}

	lowered := strings.ToLower(text)
	for _, keyword := range spamKeywords {
		if !strings.Contains(lowered, keyword) {
			continue
		}
		result.Score += keywordScore
		result.Flags = append(result.Flags, "keyword_"+keyword)
	}

	if shannonEntropy(runes) > entropyThreshold {
		result.Score += entropyScore
		result.Flags = append(result.Flags, "high_entropy")
	}

	if count := countRepetitions(text); count > 0 {
		result.Score += repetitionScore * count
		result.Flags = append(result.Flags, fmt.Sprintf("repetition_%d", count))
	}

	result.IsSpam = result.Score > spamThreshold
	result.Reason = strings.Join(result.Flags, ",")
	return result
}

// shannonEntropy returns the bits-per-character entropy of the rune
// frequency distribution, or 0 for texts shorter than the minimum.
func shannonEntropy(runes []rune) float64 {
	if len(runes) < entropyMinLength {
		return 0
	}

	freq := make(map[rune]int, len(runes))
	for _, r := range runes {
		freq[r]++
	}

	total := float64(len(runes))
	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func countRepetitions(text string) int {
	count := 0
	match, err := repetitionPattern.FindStringMatch(text)
	for err == nil && match != nil {
		count++
		match, err = repetitionPattern.FindNextMatch(match)
	}
	return count
}

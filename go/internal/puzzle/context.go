package puzzle

import (
	"math/rand/v2"
	"strings"
	"unicode"
)

// Indicator is a session-global flag. Lit indicators change the answers of several puzzles.
type Indicator struct {
	Label        string `json:"label"`
	IsLit        bool   `json:"isLit"`
	IsFlickering bool   `json:"isFlickering"`
	Color        string `json:"color"`
}

const (
	IndicatorFRK = "FRK"
	IndicatorCAR = "CAR"
)

var indicatorLabels = []string{"SND", "CLR", "CAR", "IND", "FRQ", "SIG", "NSA", "MSA", "TRN", "BOB", "FRK"}

var indicatorColors = []string{"white", "green", "amber"}

const serialLetters = "ABCDEFGHIJKLMNPQRSTUVWXZ"

const serialDigits = "0123456789"

// GenerateSerial builds a six character serial whose last character is always a digit.
func GenerateSerial(rng *rand.Rand) string {
	alnum := serialLetters + serialDigits
	var b strings.Builder
	b.WriteByte(alnum[rng.IntN(len(alnum))])
	b.WriteByte(alnum[rng.IntN(len(alnum))])
	b.WriteByte(serialDigits[rng.IntN(len(serialDigits))])
	b.WriteByte(serialLetters[rng.IntN(len(serialLetters))])
	b.WriteByte(serialLetters[rng.IntN(len(serialLetters))])
	b.WriteByte(serialDigits[rng.IntN(len(serialDigits))])
	return b.String()
}

// GenerateIndicators picks one to three distinct indicators.
func GenerateIndicators(rng *rand.Rand) []Indicator {
	n := 1 + rng.IntN(3)
	labels := sample(rng, indicatorLabels, n)
	out := make([]Indicator, n)
	for i, label := range labels {
		lit := rng.IntN(2) == 0
		out[i] = Indicator{
			Label:        label,
			IsLit:        lit,
			IsFlickering: lit && rng.IntN(4) == 0,
			Color:        pick(rng, indicatorColors),
		}
	}
	return out
}

// LastDigit returns the last digit in serial, or 0 if it has none.
func LastDigit(serial string) int {
	for i := len(serial) - 1; i >= 0; i-- {
		if serial[i] >= '0' && serial[i] <= '9' {
			return int(serial[i] - '0')
		}
	}
	return 0
}

// HasVowel reports whether serial contains A, E, I, O or U.
func HasVowel(serial string) bool {
	for _, r := range serial {
		switch unicode.ToUpper(r) {
		case 'A', 'E', 'I', 'O', 'U':
			return true
		}
	}
	return false
}

// IsLit reports whether an indicator with label is present and lit.
func IsLit(indicators []Indicator, label string) bool {
	for _, ind := range indicators {
		if ind.Label == label && ind.IsLit {
			return true
		}
	}
	return false
}

// LitCount counts lit indicators.
func LitCount(indicators []Indicator) int {
	n := 0
	for _, ind := range indicators {
		if ind.IsLit {
			n++
		}
	}
	return n
}

// AnyFlickering reports whether any indicator flickers.
func AnyFlickering(indicators []Indicator) bool {
	for _, ind := range indicators {
		if ind.IsFlickering {
			return true
		}
	}
	return false
}

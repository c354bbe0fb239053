package flow

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// amountPattern matches dollar tokens such as "$4.6B", "$1,234.5M", "$300"
// or "$2.1 billion". The first match on a clause is the clause's amount.
var amountPattern = regexp.MustCompile(`\$\s?[\d,]+(?:\.\d+)?(?:\s?(?i:trillion|billion|million|thousand)\b|[BMKT]\b)?`)

// Multipliers map a magnitude suffix onto millions, the common unit.
var magnitudes = []struct {
	suffix string
	factor float64
}{
	{"trillion", 1_000_000},
	{"billion", 1000},
	{"million", 1},
	{"thousand", 0.001},
	{"t", 1_000_000},
	{"b", 1000},
	{"m", 1},
	{"k", 0.001},
}

// Normalize converts a dollar token into millions. No suffix means the value
// is already in millions. Anything unparsable is 0; Normalize never fails.
func Normalize(token string) float64 {
	s := strings.ToLower(strings.TrimSpace(token))
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	factor := 1.0
	for _, m := range magnitudes {
		if strings.HasSuffix(s, m.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, m.suffix))
			factor = m.factor
			break
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v * factor
}

// FindAmount returns the first dollar token in s.
func FindAmount(s string) (string, bool) {
	tok := amountPattern.FindString(s)
	return tok, tok != ""
}

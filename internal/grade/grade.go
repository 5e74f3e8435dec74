package grade

import "strings"

// Status is the derived outcome of a subject grade.
type Status string

const (
	Pass Status = "Pass"
	Fail Status = "Fail"
)

// passing lists the grade tokens that count as a pass, best first.
var passing = []string{"O", "A+", "A", "B+", "B", "C"}

// Classify maps a grade token to Pass or Fail. Matching ignores case and
// surrounding whitespace; any token outside the passing set fails.
func Classify(g string) Status {
	g = strings.ToUpper(strings.TrimSpace(g))
	if g == "" {
		return Fail
	}
	for _, p := range passing {
		if g == p {
			return Pass
		}
	}
	return Fail
}

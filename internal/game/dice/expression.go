package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Expression is a parsed NdS[khK][+M] dice expression.
type Expression struct {
	Count    int
	Sides    int
	Keep     int // keep the Keep highest dice; 0 keeps all
	Modifier int
}

var expressionPattern = regexp.MustCompile(`^(\d*)d(\d+)(?:kh(\d+))?([+-]\d+)?$`)

// Parse parses expressions like "d20", "2d6+3", "1d8-1" and "4d6kh3".
//
// Postcondition: on success Count >= 1, Sides >= 2 and 0 <= Keep < Count.
func Parse(s string) (Expression, error) {
	m := expressionPattern.FindStringSubmatch(strings.ToLower(strings.ReplaceAll(s, " ", "")))
	if m == nil {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", s)
	}
	e := Expression{Count: 1}
	if m[1] != "" {
		e.Count, _ = strconv.Atoi(m[1])
	}
	e.Sides, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		e.Keep, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		e.Modifier, _ = strconv.Atoi(m[4])
	}

	switch {
	case e.Count < 1:
		return Expression{}, fmt.Errorf("dice: %q must roll at least one die", s)
	case e.Sides < 2:
		return Expression{}, fmt.Errorf("dice: %q needs at least two sides", s)
	case m[3] != "" && (e.Keep < 1 || e.Keep >= e.Count):
		return Expression{}, fmt.Errorf("dice: %q keep must be between 1 and %d", s, e.Count-1)
	}
	return e, nil
}

// MustParse is Parse for package-level constants.
func MustParse(s string) Expression {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

// String renders e in canonical form.
func (e Expression) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%dd%d", e.Count, e.Sides)
	if e.Keep > 0 {
		fmt.Fprintf(&b, "kh%d", e.Keep)
	}
	if e.Modifier != 0 {
		fmt.Fprintf(&b, "%+d", e.Modifier)
	}
	return b.String()
}

// D20 is the check die.
var D20 = MustParse("1d20")

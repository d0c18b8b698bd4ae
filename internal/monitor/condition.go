// Package monitor evaluates SLOs and invariants against live metrics and
// files tickets for violations. It is the watching half of the system: the
// ticket store records work, the monitor discovers it.
package monitor

import (
	"fmt"
	"regexp"
	"strconv"
)

// conditionPattern accepts forms like "> 20", "== 0", "<= 99.5".
var conditionPattern = regexp.MustCompile(`^\s*(>=|<=|!=|==|>|<)\s*(-?\d+(?:\.\d+)?)\s*$`)

// Condition is a parsed threshold check applied to a metric value.
type Condition struct {
	Operator  string
	Threshold float64
}

// ParseCondition parses a condition string into an evaluable form.
func ParseCondition(s string) (Condition, error) {
	m := conditionPattern.FindStringSubmatch(s)
	if m == nil {
		return Condition{}, fmt.Errorf("invalid condition %q: expected an operator and a number, like \"> 20\"", s)
	}
	threshold, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Condition{}, fmt.Errorf("invalid threshold in condition %q: %w", s, err)
	}
	return Condition{Operator: m[1], Threshold: threshold}, nil
}

// Holds reports whether the value satisfies the condition.
func (c Condition) Holds(value float64) bool {
	switch c.Operator {
	case ">":
		return value > c.Threshold
	case ">=":
		return value >= c.Threshold
	case "<":
		return value < c.Threshold
	case "<=":
		return value <= c.Threshold
	case "==":
		return value == c.Threshold
	case "!=":
		return value != c.Threshold
	}
	return false
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %g", c.Operator, c.Threshold)
}

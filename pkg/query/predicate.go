package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grafana/regexp"

	"github.com/vizd/qe/pkg/result"
)

// MatchOp is the numeric operator code of a predicate.
type MatchOp int

const (
	OpEqual      MatchOp = 1
	OpNotEqual   MatchOp = 2
	OpInRange    MatchOp = 3
	OpNotInRange MatchOp = 4
	OpLEQ        MatchOp = 5
	OpGEQ        MatchOp = 6
	OpPrefix     MatchOp = 7
	OpRegexMatch MatchOp = 8
)

func (op MatchOp) String() string {
	switch op {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpInRange:
		return "in"
	case OpNotInRange:
		return "not in"
	case OpLEQ:
		return "<="
	case OpGEQ:
		return ">="
	case OpPrefix:
		return "prefix"
	case OpRegexMatch:
		return "=~"
	}
	return fmt.Sprintf("op(%d)", int(op))
}

func (op MatchOp) valid() bool { return op >= OpEqual && op <= OpRegexMatch }

// Predicate is one field match condition.
type Predicate struct {
	Name   string
	Op     MatchOp
	Value  string
	Value2 string
	// IgnoreAbsence makes the predicate hold for rows without the field.
	IgnoreAbsence bool

	re *regexp.Regexp
}

func (p Predicate) String() string {
	switch p.Op {
	case OpInRange, OpNotInRange:
		return fmt.Sprintf("%s %s [%s, %s]", p.Name, p.Op, p.Value, p.Value2)
	}
	return fmt.Sprintf("%s %s %q", p.Name, p.Op, p.Value)
}

// newPredicate validates the operator of m and compiles regex values.
func newPredicate(m rawMatch, clause string) (Predicate, error) {
	p := Predicate{Name: m.name, Op: MatchOp(m.op), Value: m.value, Value2: m.value2}
	if !p.Op.valid() {
		return p, newInvalidArgumentError(clause, "unknown match operator %d for %q", m.op, m.name)
	}
	if p.Op == OpRegexMatch {
		re, err := regexp.Compile(p.Value)
		if err != nil {
			return p, newInvalidArgumentError(clause, "invalid regex %q for %q: %v", p.Value, p.Name, err)
		}
		p.re = re
	}
	return p, nil
}

// Match reports whether the field value v satisfies the predicate.
func (p Predicate) Match(v result.Value, present bool) bool {
	if !present || v.IsNull() {
		return p.IgnoreAbsence
	}
	if v.Kind() == result.KindIPv4 && p.Op != OpPrefix && p.Op != OpRegexMatch {
		return p.matchIPv4(v)
	}
	return p.matchText(v.String())
}

func (p Predicate) matchText(s string) bool {
	switch p.Op {
	case OpEqual:
		return s == p.Value
	case OpNotEqual:
		return s != p.Value
	case OpInRange:
		return compareLiteral(s, p.Value) >= 0 && compareLiteral(s, p.Value2) <= 0
	case OpNotInRange:
		return compareLiteral(s, p.Value) < 0 || compareLiteral(s, p.Value2) > 0
	case OpLEQ:
		return compareLiteral(s, p.Value) <= 0
	case OpGEQ:
		return compareLiteral(s, p.Value) >= 0
	case OpPrefix:
		return strings.HasPrefix(s, p.Value)
	case OpRegexMatch:
		return p.re != nil && p.re.MatchString(s)
	}
	return false
}

// matchIPv4 compares an address numerically against literals given as
// dotted quads or integers. Text matching applies when a literal is neither.
func (p Predicate) matchIPv4(v result.Value) bool {
	addr, _ := v.Uint64()
	lo, ok := result.ParseIPv4(p.Value)
	hi, ok2 := lo, true
	if p.Op == OpInRange || p.Op == OpNotInRange {
		hi, ok2 = result.ParseIPv4(p.Value2)
	}
	if !ok || !ok2 {
		return p.matchText(v.String())
	}
	switch p.Op {
	case OpEqual:
		return addr == uint64(lo)
	case OpNotEqual:
		return addr != uint64(lo)
	case OpInRange:
		return addr >= uint64(lo) && addr <= uint64(hi)
	case OpNotInRange:
		return addr < uint64(lo) || addr > uint64(hi)
	case OpLEQ:
		return addr <= uint64(lo)
	case OpGEQ:
		return addr >= uint64(lo)
	}
	return false
}

// MatchColumns looks the predicate's field up in cols.
func (p Predicate) MatchColumns(cols map[string]result.Value) bool {
	v, ok := cols[p.Name]
	return p.Match(v, ok)
}

// compareLiteral compares numerically when both sides are numbers and by
// text otherwise.
func compareLiteral(a, b string) int {
	if af, err := strconv.ParseFloat(a, 64); err == nil {
		if bf, err := strconv.ParseFloat(b, 64); err == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(a, b)
}

// PredicateSet is an OR of AND-groups. An empty set matches every row.
type PredicateSet struct {
	Groups [][]Predicate
}

func (s PredicateSet) Empty() bool { return len(s.Groups) == 0 }

// Matches reports whether any group holds entirely for cols.
func (s PredicateSet) Matches(cols map[string]result.Value) bool {
	if len(s.Groups) == 0 {
		return true
	}
	for _, g := range s.Groups {
		if matchAll(g, cols) {
			return true
		}
	}
	return false
}

func matchAll(preds []Predicate, cols map[string]result.Value) bool {
	for _, p := range preds {
		if !p.MatchColumns(cols) {
			return false
		}
	}
	return true
}

// and appends p to every group, or makes it the only group of an empty set.
func (s *PredicateSet) and(p Predicate) {
	if len(s.Groups) == 0 {
		s.Groups = [][]Predicate{{p}}
		return
	}
	for i := range s.Groups {
		s.Groups[i] = append(s.Groups[i], p)
	}
}

func (s PredicateSet) String() string {
	if s.Empty() {
		return "*"
	}
	groups := make([]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		parts := make([]string, 0, len(g))
		for _, p := range g {
			parts = append(parts, p.String())
		}
		groups = append(groups, "("+strings.Join(parts, " AND ")+")")
	}
	return strings.Join(groups, " OR ")
}

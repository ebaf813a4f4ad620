package nl2sql

import (
	"strings"
)

// DefaultDenylist holds the statements the gate always refuses.
var DefaultDenylist = []string{"DROP TABLE", "ALTER TABLE"}

// Gate is a case-insensitive substring denylist applied to synthesized
// SQL before execution.
//
// It is a backstop, not a parser: TRUNCATE, stacked statements and
// comment tricks all pass unless added to the list. The synthesis
// prompt is the first line of defence, and a database role without DDL
// privileges is the real one.
type Gate struct {
	denylist []string
}

// NewGate creates a gate refusing DefaultDenylist plus extra keywords.
func NewGate(extra ...string) *Gate {
	g := &Gate{}
	for _, kw := range append(append([]string(nil), DefaultDenylist...), extra...) {
		kw = strings.ToUpper(strings.Join(strings.Fields(kw), " "))
		if kw != "" {
			g.denylist = append(g.denylist, kw)
		}
	}
	return g
}

// Check returns a *SafetyRejectedError naming the first denylisted
// keyword found in sql, or nil. The statement is never modified.
func (g *Gate) Check(sql string) error {
	upper := strings.ToUpper(sql)
	for _, kw := range g.denylist {
		if strings.Contains(upper, kw) {
			return &SafetyRejectedError{SQL: sql, Keyword: kw}
		}
	}
	return nil
}

// Denylist returns the keywords in check order.
func (g *Gate) Denylist() []string {
	return append([]string(nil), g.denylist...)
}

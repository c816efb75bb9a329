// Package redirect decides whether a request path is a legacy alias that
// must be redirected. Rules are literal paths matched exactly and in order;
// anything else passes through.
package redirect

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyMatch     = errors.New("match path is required")
	ErrEmptyTarget    = errors.New("target path is required")
	ErrDuplicateMatch = errors.New("match path is duplicated")
)

// Rule maps one literal request path to the path the client is sent to.
type Rule struct {
	Match  string `yaml:"match" json:"match"`
	Target string `yaml:"target" json:"target"`
}

func (r Rule) String() string {
	return r.Match + " -> " + r.Target
}

// DefaultRules returns the built-in legacy aliases and login consolidation.
func DefaultRules() []Rule {
	return []Rule{
		{Match: "/builder/home", Target: "/dashboard/builder"},
		{Match: "/founder/home", Target: "/dashboard/founder"},
		{Match: "/login", Target: "/auth"},
	}
}

func checkRules(rules []Rule) error {
	seen := make(map[string]int, len(rules))
	for i, rule := range rules {
		if rule.Match == "" {
			return fmt.Errorf("rule %d: %w", i, ErrEmptyMatch)
		}
		if rule.Target == "" {
			return fmt.Errorf("rule %d (%s): %w", i, rule.Match, ErrEmptyTarget)
		}
		if prev, ok := seen[rule.Match]; ok {
			return fmt.Errorf("rule %d (%s): %w (first at rule %d)", i, rule.Match, ErrDuplicateMatch, prev)
		}
		seen[rule.Match] = i
	}
	return nil
}

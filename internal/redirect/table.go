package redirect

import "net/url"

type Action string

const (
	ActionRedirect Action = "redirect"
	ActionPass     Action = "pass"
)

// Decision is the outcome for one request URL. Rule is the index of the
// matched rule, or -1 for a pass-through.
type Decision struct {
	Action   Action
	Rule     int
	Match    string
	Target   string
	Location *url.URL
}

func (d Decision) Redirect() bool {
	return d.Action == ActionRedirect
}

func passDecision() Decision {
	return Decision{Action: ActionPass, Rule: -1}
}

// Table is an ordered, immutable rule list. The zero value passes every
// request. A Table is safe for concurrent use.
type Table struct {
	rules []Rule
}

func NewTable(rules []Rule) (*Table, error) {
	if err := checkRules(rules); err != nil {
		return nil, err
	}
	return &Table{rules: append([]Rule(nil), rules...)}, nil
}

// Default returns the table built from DefaultRules.
func Default() *Table {
	t, err := NewTable(DefaultRules())
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	return append([]Rule(nil), t.rules...)
}

// Paths returns the match paths in table order.
func (t *Table) Paths() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.rules))
	for i, rule := range t.rules {
		out[i] = rule.Match
	}
	return out
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Lookup returns the first rule whose match equals path exactly.
func (t *Table) Lookup(path string) (Rule, int, bool) {
	if t == nil {
		return Rule{}, -1, false
	}
	for i, rule := range t.rules {
		if rule.Match == path {
			return rule, i, true
		}
	}
	return Rule{}, -1, false
}

// Decide never mutates u. On a redirect the returned Location is a copy of u
// with only the path replaced; query and fragment are carried verbatim.
func (t *Table) Decide(u *url.URL) Decision {
	if u == nil {
		return passDecision()
	}

	rule, idx, ok := t.Lookup(u.Path)
	if !ok {
		return passDecision()
	}

	location := *u
	if u.User != nil {
		user := *u.User
		location.User = &user
	}
	location.Path = rule.Target
	location.RawPath = ""

	return Decision{
		Action:   ActionRedirect,
		Rule:     idx,
		Match:    rule.Match,
		Target:   rule.Target,
		Location: &location,
	}
}

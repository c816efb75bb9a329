package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/pathgate/pathgate/internal/normalize"
	"github.com/pathgate/pathgate/internal/ratelimit"
	"github.com/pathgate/pathgate/internal/redirect"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.ConfigVersion != 1 {
		v.Add("configVersion must be 1")
	}

	if err := validateListen(c.Server.Listen); err != nil {
		v.Add("server.listen invalid: %v", err)
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			v.Add("server.tls.certFile required when tls.enabled is true")
		} else if err := requireFile(c.resolvePath(c.Server.TLS.CertFile)); err != nil {
			v.Add("server.tls.certFile invalid: %v", err)
		}
		if c.Server.TLS.KeyFile == "" {
			v.Add("server.tls.keyFile required when tls.enabled is true")
		} else if err := requireFile(c.resolvePath(c.Server.TLS.KeyFile)); err != nil {
			v.Add("server.tls.keyFile invalid: %v", err)
		}
	}

	if c.Upstream.URL == "" {
		v.Add("upstream.url is required")
	} else if err := validateURL(c.Upstream.URL); err != nil {
		v.Add("upstream.url invalid: %v", err)
	}
	if c.Upstream.Timeout <= 0 {
		v.Add("upstream.timeout must be > 0")
	}

	c.validateRedirect(v)

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			v.Add("rateLimit.rps must be > 0")
		}
		if c.RateLimit.Burst <= 0 {
			v.Add("rateLimit.burst must be > 0")
		}
		switch c.RateLimit.Key {
		case ratelimit.KeyIP, ratelimit.KeyIPPath:
		default:
			v.Add("rateLimit.key must be ip|ip_path")
		}
		if c.RateLimit.StatusCode < 400 || c.RateLimit.StatusCode > 599 {
			v.Add("rateLimit.statusCode must be a 4xx or 5xx code")
		}
	}

	if c.Limits.MaxHeaderBytes < 0 {
		v.Add("limits.maxHeaderBytes must be >= 0")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		v.Add("logging.level must be debug|info|warn|error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "logfmt", "json":
	default:
		v.Add("logging.format must be text|logfmt|json")
	}

	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func (c *Config) validateRedirect(v *ValidationError) {
	if !redirect.ValidStatus(c.Redirect.StatusCode) {
		v.Add("redirect.statusCode must be one of 301|302|303|307|308")
	}

	matches := map[string]int{}
	for i, rule := range c.Redirect.Rules {
		if rule.Match == "" {
			v.Add("redirect.rules[%d].match is required", i)
		} else {
			if err := validateRulePath(rule.Match); err != nil {
				v.Add("redirect.rules[%d].match invalid: %v", i, err)
			}
			if prev, exists := matches[rule.Match]; exists {
				v.Add("redirect.rules[%d].match %q is duplicated (first at rules[%d])", i, rule.Match, prev)
			} else {
				matches[rule.Match] = i
			}
		}

		if rule.Target == "" {
			v.Add("redirect.rules[%d].target is required", i)
		} else if !strings.HasPrefix(rule.Target, "/") {
			v.Add("redirect.rules[%d].target must be an absolute path", i)
		} else if strings.ContainsAny(rule.Target, "?#") {
			v.Add("redirect.rules[%d].target must not contain a query or fragment", i)
		}
	}

	for _, loop := range findLoops(c.Redirect.Rules) {
		v.Add("redirect.rules loop: %s", strings.Join(loop, " -> "))
	}

	listed := map[string]struct{}{}
	for i, path := range c.Redirect.Matcher {
		if _, dup := listed[path]; dup {
			v.Add("redirect.matcher[%d] %q is duplicated", i, path)
			continue
		}
		listed[path] = struct{}{}
		if _, ok := matches[path]; !ok {
			v.Add("redirect.matcher[%d] %q has no rule", i, path)
		}
	}
	for match := range matches {
		if _, ok := listed[match]; !ok {
			v.Add("redirect.matcher is missing rule match %q", match)
		}
	}
}

// validateRulePath requires a path that a request could carry verbatim.
func validateRulePath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return errors.New("must be an absolute path")
	}
	if strings.ContainsAny(p, "?#") {
		return errors.New("must not contain a query or fragment")
	}
	if !normalize.IsNormal(p) {
		return fmt.Errorf("must be in normal form (%q)", normalize.NormalizePath(p))
	}
	return nil
}

// findLoops follows each rule's target through the table and reports every
// chain that returns to a match already visited. Each loop is reported once,
// starting from its lowest rule index.
func findLoops(rules []redirect.Rule) [][]string {
	next := make(map[string]string, len(rules))
	order := make(map[string]int, len(rules))
	for i, rule := range rules {
		if rule.Match == "" {
			continue
		}
		if _, exists := next[rule.Match]; exists {
			continue
		}
		next[rule.Match] = rule.Target
		order[rule.Match] = i
	}

	var loops [][]string
	reported := map[string]bool{}
	for _, rule := range rules {
		start := rule.Match
		if start == "" || reported[start] {
			continue
		}
		chain := []string{start}
		seen := map[string]bool{start: true}
		cur := start
		for {
			target, ok := next[cur]
			if !ok {
				break
			}
			if target == start {
				loops = append(loops, append(chain, start))
				for _, p := range chain {
					reported[p] = true
				}
				break
			}
			if seen[target] {
				break
			}
			seen[target] = true
			chain = append(chain, target)
			cur = target
		}
	}

	sort.SliceStable(loops, func(i, j int) bool {
		return order[loops[i][0]] < order[loops[j][0]]
	})
	return loops
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.New("must include scheme and host")
	}
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

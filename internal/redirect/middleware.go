package redirect

import (
	"fmt"
	"net/http"
)

// Matcher is the set of literal paths dispatched to the table. Requests for
// any other path never reach Decide.
type Matcher map[string]struct{}

func NewMatcher(paths ...string) Matcher {
	m := make(Matcher, len(paths))
	for _, p := range paths {
		m[p] = struct{}{}
	}
	return m
}

func (m Matcher) Has(path string) bool {
	_, ok := m[path]
	return ok
}

// Observer receives the decision for every request that reached the table.
type Observer func(r *http.Request, d Decision)

type Middleware struct {
	table    *Table
	matcher  Matcher
	status   int
	observer Observer
}

type Option func(*Middleware)

// WithMatcher overrides the default allowlist of table match paths.
func WithMatcher(m Matcher) Option {
	return func(mw *Middleware) {
		mw.matcher = m
	}
}

func WithStatus(code int) Option {
	return func(mw *Middleware) {
		mw.status = code
	}
}

func WithObserver(fn Observer) Option {
	return func(mw *Middleware) {
		mw.observer = fn
	}
}

func NewMiddleware(table *Table, opts ...Option) (*Middleware, error) {
	if table == nil {
		table = &Table{}
	}
	mw := &Middleware{
		table:  table,
		status: http.StatusTemporaryRedirect,
	}
	for _, opt := range opts {
		opt(mw)
	}
	if mw.matcher == nil {
		mw.matcher = NewMatcher(table.Paths()...)
	}
	if !ValidStatus(mw.status) {
		return nil, fmt.Errorf("redirect status %d is not a redirect code", mw.status)
	}
	return mw, nil
}

func (mw *Middleware) Table() *Table {
	return mw.table
}

func (mw *Middleware) Status() int {
	return mw.status
}

// Allowed reports whether requests for path are dispatched to the table.
func (mw *Middleware) Allowed(path string) bool {
	return mw.matcher.Has(path)
}

// Handler redirects allowlisted paths that match a rule and hands every other
// request to next untouched.
func (mw *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mw.Allowed(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		d := mw.table.Decide(r.URL)
		if mw.observer != nil {
			mw.observer(r, d)
		}
		if !d.Redirect() {
			next.ServeHTTP(w, r)
			return
		}

		// Location carries the rewritten URL verbatim; http.Redirect would clean it.
		w.Header().Set("Location", d.Location.String())
		w.WriteHeader(mw.status)
	})
}

func ValidStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

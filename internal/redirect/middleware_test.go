package redirect

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("next:" + r.URL.RequestURI()))
	})
}

func TestMiddlewareRedirects(t *testing.T) {
	mw, err := NewMiddleware(Default())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mw.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?next=/settings", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/auth?next=/settings", rec.Header().Get("Location"))
	assert.Empty(t, rec.Body.String())
}

func TestMiddlewarePassThrough(t *testing.T) {
	mw, err := NewMiddleware(Default())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mw.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/builder?x=1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "next:/dashboard/builder?x=1", rec.Body.String())
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestMiddlewareMatcherGatesTable(t *testing.T) {
	var observed []Decision
	mw, err := NewMiddleware(Default(),
		WithMatcher(NewMatcher("/login", "/unmapped")),
		WithStatus(http.StatusPermanentRedirect),
		WithObserver(func(r *http.Request, d Decision) { observed = append(observed, d) }),
	)
	require.NoError(t, err)
	h := mw.Handler(okHandler())

	// Not on the allowlist: never reaches the table.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/builder/home", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, observed)

	// On the allowlist without a rule: explicit pass-through.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unmapped", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, observed, 1)
	assert.Equal(t, ActionPass, observed[0].Action)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("Location"))
	require.Len(t, observed, 2)
	assert.Equal(t, 2, observed[1].Rule)
}

func TestNewMiddlewareRejectsStatus(t *testing.T) {
	_, err := NewMiddleware(Default(), WithStatus(http.StatusOK))
	require.Error(t, err)

	for _, code := range []int{301, 302, 303, 307, 308} {
		assert.True(t, ValidStatus(code), "code %d", code)
	}
}

// Command app is a stand-in upstream for trying pathgate locally. It serves
// the canonical pages that the redirect rules point at.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

func main() {
	mux := http.NewServeMux()

	page := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = fmt.Fprintf(w, "%s (query=%q)\n", name, r.URL.RawQuery)
		}
	}

	mux.HandleFunc("/", page("home"))
	mux.HandleFunc("/dashboard/builder", page("builder dashboard"))
	mux.HandleFunc("/dashboard/founder", page("founder dashboard"))
	mux.HandleFunc("/auth", page("sign in"))

	srv := &http.Server{
		Addr:              ":3000",
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("demo app listening", slog.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("demo app failed", slog.Any("error", err))
		os.Exit(1)
	}
}

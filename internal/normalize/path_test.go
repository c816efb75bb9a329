package normalize

import "testing"

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/a//b/./c":     "/a/b/c",
		"/a/b/../c":     "/a/c",
		"../a/../b":     "b",
		"/../a":         "/a",
		"/a/b/":         "/a/b/",
		"":              "/",
		"/":             "/",
		"/a/../../b":    "/b",
		"/login":        "/login",
		"/builder/home": "/builder/home",
	}

	for input, expected := range cases {
		got := NormalizePath(input)
		if got != expected {
			t.Fatalf("NormalizePath(%q) expected %q, got %q", input, expected, got)
		}
	}
}

func TestIsNormal(t *testing.T) {
	for _, p := range []string{"/", "/login", "/builder/home", "/a/b/"} {
		if !IsNormal(p) {
			t.Fatalf("expected %q to be normal", p)
		}
	}
	for _, p := range []string{"", "/a//b", "/a/./b", "/a/../b", "//login"} {
		if IsNormal(p) {
			t.Fatalf("expected %q not to be normal", p)
		}
	}
}

package text

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already a slug", input: "foo", expected: "foo"},
		{name: "capitals and spaces", input: "Foo Bar", expected: "foo-bar"},
		{name: "accents", input: "Café Racer", expected: "cafe-racer"},
		{name: "punctuation", input: "  Hello, World!  ", expected: "hello-world"},
		{name: "underscores kept", input: "nav_menu_item", expected: "nav_menu_item"},
		{name: "only symbols", input: "!@#$", expected: ""},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSlugify_Truncates(t *testing.T) {
	got := Slugify(strings.Repeat("ab ", 100))
	if len(got) > MaxSlugLength {
		t.Errorf("len = %d, want <= %d", len(got), MaxSlugLength)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("slug %q ends with a hyphen", got)
	}
}

func TestSlugifyPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "Baz", expected: "baz"},
		{input: "News/Local Events", expected: "news/local-events"},
		{input: "/news//!!/local/", expected: "news/local"},
	}

	for _, tt := range tests {
		if got := SlugifyPath(tt.input); got != tt.expected {
			t.Errorf("SlugifyPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

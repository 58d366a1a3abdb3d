package tabs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	home := "lumina://home"

	tests := []struct {
		name     string
		in       string
		want     string
		external bool
	}{
		{"empty defaults to home", "", "lumina://home", false},
		{"whitespace defaults to home", "   ", "lumina://home", false},
		{"blank placeholder", "about:blank", "about:blank", false},
		{"internal page", "lumina://settings", "lumina://settings", false},
		{"internal with query", "lumina://search?q=go", "lumina://search?q=go", false},
		{"bare hostname", "example.com", "https://example.com", true},
		{"hostname with path", "example.com/a/b", "https://example.com/a/b", true},
		{"explicit https", "https://example.com", "https://example.com", true},
		{"explicit http kept", "http://example.com", "http://example.com", true},
		{"other scheme external", "ftp://files.example.com", "ftp://files.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, external := Normalize(tt.in, home)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.external, external)
		})
	}
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "lumina://search?q=two+words", SearchURL("lumina://search", "two words"))
	assert.Equal(t, "lumina://search?q=a%26b", SearchURL("lumina://search", "a&b"))
}

func TestDefaultTitle(t *testing.T) {
	assert.Equal(t, "example.com", defaultTitle("https://example.com/path", true))
	assert.Equal(t, "Home", defaultTitle("lumina://home", false))
	assert.Equal(t, "Search", defaultTitle("lumina://search?q=x", false))
	assert.Equal(t, "New Tab", defaultTitle("about:blank", false))
}

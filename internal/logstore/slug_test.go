package logstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected Slug
		str      string
	}{
		{input: "wikimedia/pywikibot-core", expected: Slug{User: "wikimedia", Project: "pywikibot-core"}, str: "wikimedia/pywikibot-core"},
		{input: "wikimedia/pywikibot-core/2215", expected: Slug{User: "wikimedia", Project: "pywikibot-core", Build: 2215}, str: "wikimedia/pywikibot-core/2215"},
		{input: "/wikimedia/pywikibot-core/2215.3/", expected: Slug{User: "wikimedia", Project: "pywikibot-core", Build: 2215, Job: 3}, str: "wikimedia/pywikibot-core/2215.3"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSlug(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.str, got.String())
		})
	}
}

func TestParseSlugErrors(t *testing.T) {
	for _, input := range []string{"", "wikimedia", "wikimedia/", "a/b/c/d", "a/b/x", "a/b/0", "a/b/12.", "a/b/12.-1"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSlug(input)
			assert.Error(t, err)
		})
	}
}

func TestParseFileName(t *testing.T) {
	got, err := ParseFileName("2215.3-failed.txt")
	require.NoError(t, err)
	assert.Equal(t, FileName{Build: 2215, Job: 3, State: "failed"}, got)
	assert.Equal(t, "2215.3-failed.txt", got.String())

	for _, bad := range []string{"2215.3-failed.log", "2215.3.txt", "2215-failed.txt", "x.3-failed.txt", "2215.0-passed.txt", "2215.3-.txt"} {
		_, err := ParseFileName(bad)
		assert.Error(t, err, bad)
	}
}

package properties_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schnell3526/k8s-job-ws-notify/pkg/properties"
)

func TestToMapHeaders(t *testing.T) {
	t.Parallel()

	headers, err := properties.ToMap("X-Token=abc\nX-Env=prod")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Token": "abc", "X-Env": "prod"}, headers)
}

func TestToMapEmpty(t *testing.T) {
	t.Parallel()

	headers, err := properties.ToMap("")
	require.NoError(t, err)
	assert.Nil(t, headers)

	headers, err = properties.ToMap("\n  \n# only a comment\n")
	require.NoError(t, err)
	assert.NotNil(t, headers)
	assert.Empty(t, headers)
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{"colon separator", "Authorization:Bearer x", map[string]string{"Authorization": "Bearer x"}},
		{"spaces around separator", "  X-A  =  1 ", map[string]string{"X-A": "1 "}},
		{"whitespace separator", "X-A 1", map[string]string{"X-A": "1"}},
		{"whitespace then separator", "X-A  : 1", map[string]string{"X-A": "1"}},
		{"value keeps later separators", "X-A=a=b:c", map[string]string{"X-A": "a=b:c"}},
		{"key without value", "X-Flag", map[string]string{"X-Flag": ""}},
		{"last duplicate wins", "X-A=1\nX-A=2", map[string]string{"X-A": "2"}},
		{"comments", "# comment\n! other\nX-A=1", map[string]string{"X-A": "1"}},
		{"crlf", "X-A=1\r\nX-B=2\r\n", map[string]string{"X-A": "1", "X-B": "2"}},
		{"continuation", "X-A=one, \\\n    two", map[string]string{"X-A": "one, two"}},
		{"escaped backslash is not a continuation", "X-A=c:\\\\\nX-B=2", map[string]string{"X-A": `c:\`, "X-B": "2"}},
		{"escaped separator in key", `X\=A=1`, map[string]string{"X=A": "1"}},
		{"escapes", `X-A=tab\there\u0041`, map[string]string{"X-A": "tab\thereA"}},
		{"surrogate pair", `X-A=\uD83D\uDE00!`, map[string]string{"X-A": "\U0001F600!"}},
		{"lone high surrogate", `X-A=\uD83Dx`, map[string]string{"X-A": "\uFFFDx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := properties.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	_, err := properties.Parse("X-A=1\nX-B=\\u12")
	require.Error(t, err)
	assert.True(t, errors.Is(err, properties.ErrMalformed))

	_, err = properties.ToMap("X-B=\\uZZZZ")
	assert.ErrorIs(t, err, properties.ErrMalformed)
}

func TestParseLenientSkipsMalformed(t *testing.T) {
	t.Parallel()

	got := properties.ParseLenient("X-A=1\nX-B=\\uZZZZ\nX-C=3")
	assert.Equal(t, map[string]string{"X-A": "1", "X-C": "3"}, got)
}

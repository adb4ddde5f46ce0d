package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokensBasic(t *testing.T) {
	assert.Equal(t, []string{"alpha", "beta"}, Tokens("Alpha Beta"))
}

func TestTokensSplitsOnPunctuation(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar", "baz"}, Tokens("foo-bar_baz.go"))
}

func TestTokensEmpty(t *testing.T) {
	assert.Nil(t, Tokens(""))
	assert.Empty(t, Tokens("   ---   "))
}

func TestTokensDeterministic(t *testing.T) {
	const in = "Retry logic for HTTP/2 streams: backoff=500ms"
	assert.Equal(t, Tokens(in), Tokens(in))
}

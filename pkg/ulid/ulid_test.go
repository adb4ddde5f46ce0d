package ulid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLength(t *testing.T) {
	id := New()
	assert.Len(t, id, 26)
}

func TestMonotonicSameMillisecond(t *testing.T) {
	var src Source
	now := time.UnixMilli(1_700_000_000_000)

	a := src.New(now)
	b := src.New(now)
	c := src.New(now)

	assert.True(t, a < b, "expected %q < %q", a, b)
	assert.True(t, b < c, "expected %q < %q", b, c)
}

func TestSortsByTime(t *testing.T) {
	var src Source
	earlier := src.New(time.UnixMilli(1_700_000_000_000))
	later := src.New(time.UnixMilli(1_700_000_000_001))
	assert.True(t, earlier < later)
}

func TestAlphabetOnly(t *testing.T) {
	id := New()
	for _, r := range id {
		assert.Contains(t, crockford, string(r))
	}
}

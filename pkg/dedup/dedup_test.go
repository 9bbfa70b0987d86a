package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcess(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := New(time.Minute, 10)
	d.now = func() time.Time { return now }

	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
	assert.True(t, d.ShouldProcess("b"))
	assert.True(t, d.ShouldProcess(""), "empty ids are never deduplicated")
	assert.True(t, d.ShouldProcess(""))

	now = now.Add(2 * time.Minute)
	assert.True(t, d.ShouldProcess("a"), "expired entries are seen again")
}

func TestShouldProcess_Bounded(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := New(time.Second, 3)
	d.now = func() time.Time { return now }
	for _, id := range []string{"a", "b", "c"} {
		d.ShouldProcess(id)
	}
	now = now.Add(time.Minute)
	d.ShouldProcess("d")
	assert.LessOrEqual(t, d.Len(), 3)
}

func TestForget(t *testing.T) {
	d := New(time.Minute, 10)
	assert.True(t, d.ShouldProcess("a"))
	d.Forget("a")
	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
	d.Forget("missing")
	assert.Equal(t, 1, d.Len())
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("backend", 742.5, 60.0), Key("backend", 742.5, 60.0))
	assert.NotEqual(t, Key("backend", 742.5), Key("local-fallback", 742.5))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Len(t, Key(), 64)
}

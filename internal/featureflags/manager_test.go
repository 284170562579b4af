package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,over=250%")

	assert.True(t, m.Enabled("always", 1))
	assert.True(t, m.Enabled("over", 1), "percentages clamp to 100")
	assert.False(t, m.Enabled("never", 1))

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42), "rollout must be deterministic per user")
	}
	assert.False(t, m.Enabled("canary", 0), "anonymous callers are outside partial rollouts")

	enabled := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("canary", id) {
			enabled++
		}
	}
	assert.InDelta(t, 250, enabled, 100)
}

func TestDefaults(t *testing.T) {
	var nilManager *Manager
	assert.True(t, nilManager.Enabled(AvatarUploads, 0))
	assert.False(t, nilManager.Enabled("unknown", 1))

	m := NewManager("avatar_uploads=off")
	assert.False(t, m.Enabled(AvatarUploads, 5))
	assert.True(t, m.Enabled(ThreadSearch, 5))
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off,w=maybe ")

	raw := m.Raw()
	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, raw)
	assert.Equal(t, []string{"bad", "w=maybe"}, m.Invalid())

	snap := m.Snapshot(123)
	assert.Len(t, snap, len(defaults)+3)
	assert.True(t, snap["x"])
	assert.True(t, snap[ReportFiling])
	assert.Contains(t, m.Names(), PasswordResets)
}

package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/resetaudio/internal/locate"
	"github.com/roach88/resetaudio/internal/notify"
)

var volumeKey = notify.PropertyKey{
	FmtID: uuid.MustParse("1da5d803-d492-4edd-8c23-e0c0ffee7f0e"),
	PID:   3,
}

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, CurrentVersion, c.Version)
	assert.True(t, c.ConfigVisible)
	assert.False(t, c.AdvancedExpanded)
	assert.True(t, c.SuppressForward)
	assert.True(t, c.PrintToChat)
	assert.False(t, c.EnableIntegration)
	assert.Equal(t, 100, c.CoalesceMs)
	assert.Equal(t, []Suppression{{
		Key:     notify.PKeyAudioClientAttach,
		Comment: "Audio client attach?",
		Enabled: true,
	}}, c.IgnorePropertyUpdateKeys)
	assert.Empty(t, Validate(&c))
}

func TestSeed(t *testing.T) {
	var c Config
	assert.True(t, c.Seed())
	assert.Len(t, c.IgnorePropertyUpdateKeys, 1)

	assert.False(t, c.Seed(), "non-empty list is left alone")

	c.IgnorePropertyUpdateKeys = []Suppression{{Key: volumeKey, Enabled: false}}
	assert.False(t, c.Seed())
	assert.Equal(t, volumeKey, c.IgnorePropertyUpdateKeys[0].Key)
}

func TestIsSuppressed_EnabledOnly(t *testing.T) {
	c := Default()
	c.IgnorePropertyUpdateKeys = append(c.IgnorePropertyUpdateKeys, Suppression{Key: volumeKey, Enabled: false})

	assert.True(t, c.IsSuppressed(notify.PKeyAudioClientAttach))
	assert.False(t, c.IsSuppressed(volumeKey), "disabled entry")
	assert.False(t, c.IsSuppressed(notify.PKeyDeviceFriendlyName), "absent entry")
}

func TestWindow_Clamped(t *testing.T) {
	tests := []struct {
		ms   int
		want time.Duration
	}{
		{100, 100 * time.Millisecond},
		{0, 50 * time.Millisecond},
		{5000, time.Second},
	}
	for _, tt := range tests {
		c := Config{CoalesceMs: tt.ms}
		assert.Equal(t, tt.want, c.Window(), "%d ms", tt.ms)
	}
}

func TestProfile_DefaultAndOverride(t *testing.T) {
	c := Default()
	assert.Equal(t, locate.DefaultProfile().Cleanup.Pattern.String(), c.Profile().Cleanup.Pattern.String())

	p := locate.DefaultProfile()
	p.Cleanup.Immediate = 9
	c.Signatures = &p
	assert.Equal(t, int64(9), c.Profile().Cleanup.Immediate)
}

func TestClone_IsDeep(t *testing.T) {
	c := Default()
	p := locate.DefaultProfile()
	c.Signatures = &p

	d := c.Clone()
	d.IgnorePropertyUpdateKeys[0].Enabled = false
	d.Signatures.Construct.Immediate = 42

	assert.True(t, c.IgnorePropertyUpdateKeys[0].Enabled)
	assert.NotEqual(t, int64(42), c.Signatures.Construct.Immediate)
}

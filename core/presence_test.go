package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceStatus(t *testing.T) {
	registry := NewPresenceRegistry()

	t.Run("unknown user is offline", func(t *testing.T) {
		assert.Equal(t, Offline, registry.Status("ghost"))
	})

	t.Run("tracks online and offline transitions", func(t *testing.T) {
		registry.SetOnline("lev")
		assert.Equal(t, Online, registry.Status("lev"))

		registry.SetOffline("lev")
		assert.Equal(t, Offline, registry.Status("lev"))
	})

	t.Run("disconnected users stay in the registry", func(t *testing.T) {
		registry.SetOnline("cin")
		registry.SetOffline("cin")
		assert.Equal(t, Offline, registry.Status("cin"))
		assert.NotContains(t, registry.Online(), "cin")
	})
}

func TestPresenceOnline(t *testing.T) {
	registry := NewPresenceRegistry()
	registry.SetOnline("zed")
	registry.SetOnline("ann")
	registry.SetOnline("lev")
	registry.SetOffline("zed")

	assert.Equal(t, []string{"ann", "lev"}, registry.Online())
}

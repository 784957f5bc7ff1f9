package huddle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig()
	require.Nil(t, err)
	require.Nil(t, config.Validate())

	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "0.0.0.0", config.Hostname)
	assert.Len(t, []byte(config.Auth.Secret), 32)
	assert.Equal(t, 24*time.Hour, config.Auth.TokenExp)
	assert.Equal(t, "memory", config.History.Backend)
	assert.Equal(t, 100, config.History.Limit)
	assert.Equal(t, 3*time.Second, config.Typing.TTL)
	assert.Equal(t, time.Second, config.Typing.SweepInterval)
	assert.Equal(t, int64(5<<20), config.Upload.MaxBytes)
	assert.Equal(t, []string{"*"}, config.AllowedOrigins)

	require.Len(t, config.Users, 2)
	assert.Equal(t, "lev", config.Users[0].Username)
	assert.Equal(t, "cin", config.Users[1].Username)
}

func TestConfigValidate(t *testing.T) {
	t.Run("rejects an unknown history backend", func(t *testing.T) {
		config, err := LoadConfig()
		require.Nil(t, err)
		config.History.Backend = "postgres"

		err = config.Validate()
		require.NotNil(t, err)
		assert.NotEmpty(t, FormatValidationErrors(err))
	})

	t.Run("rejects an out-of-range port", func(t *testing.T) {
		config, err := LoadConfig()
		require.Nil(t, err)
		config.Port = 1 << 20

		assert.NotNil(t, config.Validate())
	})
}

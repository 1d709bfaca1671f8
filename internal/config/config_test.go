package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffreyp/wordgame/internal/game"
)

func TestLoadFrom_Defaults(t *testing.T) {
	c, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, ":5000", c.Addr())
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "dev_key", c.SecretKey)
	assert.Equal(t, 4, c.GridSize)
	assert.Equal(t, 120*time.Second, c.RoundDuration)
	assert.Equal(t, 3, c.MinWordLength)
	assert.Empty(t, c.DBPath)
	assert.Empty(t, c.WordsFile)
}

func TestLoadFrom_Overrides(t *testing.T) {
	c, err := LoadFrom(map[string]string{
		"PORT":           "8080",
		"LOG_FORMAT":     "console",
		"GRID_SIZE":      "5",
		"ROUND_DURATION": "90s",
		"DB_PATH":        "./data/rounds.db",
	})
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 5, c.GridSize)
	assert.Equal(t, 90*time.Second, c.RoundDuration)
	assert.Equal(t, "./data/rounds.db", c.DBPath)
}

func TestLoadFrom_Invalid(t *testing.T) {
	_, err := LoadFrom(map[string]string{"GRID_SIZE": "6"})
	assert.ErrorIs(t, err, game.ErrConfiguration)

	_, err = LoadFrom(map[string]string{"ROUND_DURATION": "soon"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Config{Port: "1", LogFormat: "json", GridSize: 6, RoundDuration: 0, MinWordLength: 0}
	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrConfiguration)
	assert.ErrorContains(t, err, "ROUND_DURATION")
	assert.ErrorContains(t, err, "MIN_WORD_LENGTH")

	c = Config{Port: "1", LogFormat: "xml", GridSize: 4, RoundDuration: time.Second, MinWordLength: 3}
	assert.ErrorContains(t, c.Validate(), "LOG_FORMAT")
}

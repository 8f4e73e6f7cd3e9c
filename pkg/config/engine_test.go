package config

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Valid(t *testing.T) {
	e := Default().Engine()

	changed, err := e.Apply(KeyMaxTabs, 4)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 4, e.MaxTabs)

	changed, err = e.Apply(KeyMaxTabs, float64(4))
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = e.Apply(KeyCountdown, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, e.CountdownMinutes)

	_, err = e.Apply(KeyCloseDuplicates, true)
	require.NoError(t, err)
	assert.True(t, e.CloseDuplicates)
}

func TestApply_InvalidKeepsLastKnownGood(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{KeyMaxTabs, 0},
		{KeyMaxTabs, -3},
		{KeyMaxTabs, 2.5},
		{KeyMaxTabs, "7"},
		{KeyCountdown, 0},
		{KeyCountdown, -1.5},
		{KeyCountdownEnabled, "yes"},
	}
	for _, tt := range tests {
		e := Default().Engine()
		before := e
		_, err := e.Apply(tt.key, tt.value)
		assert.True(t, errors.Is(err, ErrInvalidValue), "%s=%v: %v", tt.key, tt.value, err)
		assert.Equal(t, before, e)
	}
}

func TestApply_UnknownKey(t *testing.T) {
	e := Default().Engine()
	_, err := e.Apply(KeyTabs, 1)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestMerge_SkipsInvalid(t *testing.T) {
	e := Default().Engine()
	err := e.Merge(map[string]any{
		KeyMaxTabs:         json.Number("8"),
		KeyCountdown:       0.0,
		KeyMaxTabsEnabled:  true,
		KeyCloseDuplicates: nil,
		"unrelated":        "x",
	})
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, 8, e.MaxTabs)
	assert.True(t, e.MaxTabsEnabled)
	assert.Equal(t, 5.0, e.CountdownMinutes)
}

func TestMatches(t *testing.T) {
	e := Default().Engine()
	e.MaxTabs = 5

	assert.True(t, e.Matches(KeyMaxTabs, 5))
	assert.True(t, e.Matches(KeyMaxTabs, float64(5)))
	assert.False(t, e.Matches(KeyMaxTabs, 6))
	assert.False(t, e.Matches(KeyMaxTabs, -1))
	assert.False(t, e.Matches(KeyTabs, 5))
}

func TestCountdownSeconds(t *testing.T) {
	assert.Equal(t, 60, Engine{CountdownMinutes: 1}.CountdownSeconds())
	assert.Equal(t, 30, Engine{CountdownMinutes: 0.5}.CountdownSeconds())
	assert.Equal(t, 1, Engine{CountdownMinutes: 0.001}.CountdownSeconds())
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(KeyMaxTabs, " 12 ")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	v, err = ParseValue(KeyCountdown, "1.5")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = ParseValue(KeyCountdownEnabled, "on")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = ParseValue(KeyMaxTabs, "0")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ParseValue("color", "red")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestValuesCoversKnobs(t *testing.T) {
	vals := Default().Engine().Values()
	for _, k := range Knobs {
		assert.Contains(t, vals, k)
		assert.True(t, IsKnob(k))
	}
	assert.False(t, IsKnob(KeyTabsCount))
}

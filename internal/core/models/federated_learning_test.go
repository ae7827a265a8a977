package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterSetClone(t *testing.T) {
	original := ParameterSet{"linear.weight": {1, 2, 3}}

	clone := original.Clone()
	clone["linear.weight"][0] = 99

	assert.Equal(t, 1.0, original["linear.weight"][0])

	var nilSet ParameterSet
	assert.Nil(t, nilSet.Clone())
}

func TestParameterSetCompatible(t *testing.T) {
	base := ParameterSet{
		"linear.weight": {1, 2, 3},
		"linear.bias":   {0},
	}

	t.Run("same shape", func(t *testing.T) {
		assert.NoError(t, base.Compatible(ParameterSet{
			"linear.weight": {7, 8, 9},
			"linear.bias":   {5},
		}))
	})

	t.Run("missing key", func(t *testing.T) {
		err := base.Compatible(ParameterSet{
			"linear.weight": {7, 8, 9},
			"conv.weight":   {5},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "linear.bias")
	})

	t.Run("key count mismatch", func(t *testing.T) {
		assert.Error(t, base.Compatible(ParameterSet{"linear.weight": {7, 8, 9}}))
	})

	t.Run("tensor length mismatch", func(t *testing.T) {
		err := base.Compatible(ParameterSet{
			"linear.weight": {7, 8},
			"linear.bias":   {5},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "length mismatch")
	})
}

func TestUpdateValid(t *testing.T) {
	assert.True(t, (&Update{Parameters: ParameterSet{"b": {1}}}).Valid())
	assert.False(t, (&Update{}).Valid())
	assert.False(t, (&Update{Parameters: ParameterSet{"b": {1}}, Error: "boom"}).Valid())
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventRoundCompleted, map[string]interface{}{"round": 1})
	assert.Equal(t, EventRoundCompleted, event.Kind)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, 1, event.Payload["round"])
}

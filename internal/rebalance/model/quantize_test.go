package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantize(t *testing.T) {
	tests := []struct {
		name string
		x    string
		step string
		down bool
		want string
	}{
		{"exact multiple", "1.00", "0.01", true, "1"},
		{"round down", "1.236", "0.01", true, "1.23"},
		{"round up", "1.231", "0.01", false, "1.24"},
		{"zero stays zero", "0", "0.01", true, "0"},
		{"down on exact keeps value", "2.5", "0.5", true, "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := decimal.RequireFromString(tt.x)
			step := decimal.RequireFromString(tt.step)
			got, err := Quantize(x, step, tt.down)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestQuantizeRejectsNonPositiveStep(t *testing.T) {
	_, err := Quantize(decimal.NewFromInt(1), decimal.Zero, true)
	assert.Error(t, err)

	_, err = Quantize(decimal.NewFromInt(1), decimal.NewFromInt(-1), true)
	assert.Error(t, err)
}

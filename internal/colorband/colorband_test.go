package colorband_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airdash/airdash/internal/colorband"
)

func TestColorize(t *testing.T) {
	th := colorband.DefaultThresholds()

	tests := []struct {
		value float64
		want  colorband.Band
	}{
		{-3, colorband.Green},
		{0, colorband.Green},
		{25, colorband.Green},
		{25.01, colorband.Orange},
		{50, colorband.Orange},
		{50.5, colorband.Yellow},
		{100, colorband.Yellow},
		{100.01, colorband.Red},
		{150, colorband.Red},
	}

	for _, tt := range tests {
		got, err := th.Colorize(tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "value %v", tt.value)
	}
}

func TestColorize_Monotonic(t *testing.T) {
	th := colorband.DefaultThresholds()

	prev := colorband.Green
	for v := -10.0; v <= 200; v += 0.25 {
		b, err := th.Colorize(v)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, int(b), int(prev), "value %v", v)
		prev = b
	}
}

func TestColorize_NonFinite(t *testing.T) {
	th := colorband.DefaultThresholds()
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := th.Colorize(v)
		assert.ErrorIs(t, err, colorband.ErrNonFiniteValue)
	}
}

func TestColorizeSeries(t *testing.T) {
	th := colorband.DefaultThresholds()

	bands, err := th.ColorizeSeries([]float64{10, 30, 75, 120})
	require.NoError(t, err)
	assert.Equal(t, []colorband.Band{colorband.Green, colorband.Orange, colorband.Yellow, colorband.Red}, bands)

	_, err = th.ColorizeSeries([]float64{10, math.NaN(), math.Inf(1)})
	var seriesErr *colorband.SeriesError
	require.ErrorAs(t, err, &seriesErr)
	assert.Equal(t, 1, seriesErr.Index)
	assert.ErrorIs(t, err, colorband.ErrNonFiniteValue)
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, colorband.DefaultThresholds().Validate())

	invalid := []colorband.Thresholds{
		{Low: 50, High: 25, VeryHigh: 100},
		{Low: 25, High: 25, VeryHigh: 100},
		{Low: 25, High: 50, VeryHigh: math.NaN()},
		{Low: math.Inf(-1), High: 50, VeryHigh: 100},
	}
	for _, th := range invalid {
		assert.ErrorIs(t, th.Validate(), colorband.ErrInvalidThresholds)
	}
}

func TestBand_JSON(t *testing.T) {
	b, err := json.Marshal([]colorband.Band{colorband.Green, colorband.Red})
	require.NoError(t, err)
	assert.JSONEq(t, `["green","red"]`, string(b))
}

package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHourlyCost(t *testing.T) {
	tests := []struct {
		watts     float64
		meterType string
		want      string
	}{
		{1000, "900VA", "1352"},
		{1000, "450VA", "415"},
		{1000, "1300VA", "1444"},
		{1000, "2200VA", "1444"},
		{500, "900VA", "676"},
		{333.333, "900VA", "450.67"},
		{0, "450VA", "0"},
		{3, "450VA", "1.25"}, // 1.245 rounds half away from zero
	}

	for _, tt := range tests {
		got, err := HourlyCost(tt.watts, tt.meterType)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.String(), "%v W at %s", tt.watts, tt.meterType)
	}
}

func TestHourlyCostRejectsUnknownMeter(t *testing.T) {
	for _, meter := range []string{"", "900va", "3500VA"} {
		_, err := HourlyCost(1000, meter)
		assert.ErrorIs(t, err, ErrInvalidMeterType, meter)
	}
}

func TestMeterTypesHaveTariffs(t *testing.T) {
	for _, m := range MeterTypes() {
		_, err := Tariff(m)
		assert.NoError(t, err, m)
	}
	assert.Len(t, MeterTypes(), len(tariffs))
}

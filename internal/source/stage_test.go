package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStage(t *testing.T) {
	obs := func(v float64) *float64 { return &v }

	tests := []struct {
		name        string
		observation *float64
		boundaries  map[int]float64
		want        string
	}{
		{"no ranges", obs(100), nil, ""},
		{"no reading", nil, map[int]float64{0: 300, 9: 1200}, StageNoReading},
		{"below minimum", obs(100), map[int]float64{0: 300, 9: 1200}, "too low"},
		{"above maximum", obs(2000), map[int]float64{0: 300, 9: 1200}, "too high"},
		{"two boundaries", obs(700), map[int]float64{0: 300, 9: 1200}, "runnable"},
		{"single high boundary met exactly", obs(1200), map[int]float64{9: 1200}, "runnable"},
		{"single high boundary not met", obs(700), map[int]float64{9: 1200}, "too low"},
		{
			"three boundaries lower band",
			obs(700), map[int]float64{0: 300, 5: 1200, 9: 2400},
			"lower runnable",
		},
		{
			"three boundaries higher band",
			obs(1800), map[int]float64{0: 300, 5: 1200, 9: 2400},
			"higher runnable",
		},
		{
			"four boundaries",
			obs(900), map[int]float64{0: 300, 3: 600, 6: 1200, 9: 2400},
			"medium",
		},
		{
			"five boundaries low biased",
			obs(450), map[int]float64{0: 300, 2: 400, 4: 600, 5: 1200, 9: 2400},
			"medium low",
		},
		{
			"five boundaries high biased",
			obs(450), map[int]float64{0: 300, 5: 400, 6: 600, 7: 1200, 9: 2400},
			"medium",
		},
		{
			"six boundaries",
			obs(500), map[int]float64{0: 100, 2: 200, 4: 400, 6: 800, 8: 1600, 9: 3200},
			"medium",
		},
		{
			"duplicate values collapse",
			obs(700), map[int]float64{0: 300, 4: 1200, 9: 1200},
			"runnable",
		},
		{
			"observation on interior boundary",
			obs(1200), map[int]float64{0: 300, 5: 1200, 9: 2400},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveStage(tt.observation, tt.boundaries))
		})
	}
}

package sensor

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stressguard/internal/alert"
	"github.com/felixgeelhaar/stressguard/internal/log"
)

func TestNextStaysInRange(t *testing.T) {
	sim := New(Config{Seed: 42, StressProbability: 0.5}, nil, log.Discard())
	for i := 0; i < 500; i++ {
		r := sim.Next()
		for name, v := range map[string]float64{"bvp": r.BVP, "eda": r.EDA, "temp": r.Temp} {
			c := Channels[name]
			assert.GreaterOrEqual(t, v, c.Min, name)
			assert.LessOrEqual(t, v, c.Max, name)
		}
	}
}

func TestSeedIsDeterministic(t *testing.T) {
	a := New(Config{Seed: 7, StressProbability: 0.3}, nil, log.Discard())
	b := New(Config{Seed: 7, StressProbability: 0.3}, nil, log.Discard())
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestStressEpisodeReachesStressZone(t *testing.T) {
	sim := New(Config{Seed: 1, StressProbability: 1}, nil, log.Discard())
	// Probability 1 toggles every tick: relaxed -> stressed on the first
	r := sim.Next()
	assert.Equal(t, alert.ZoneStress, alert.ClassifyEDA(r.EDA))
	r = sim.Next()
	assert.NotEqual(t, alert.ZoneStress, alert.ClassifyEDA(r.EDA))
}

func TestRunSendsOnlyStressReadings(t *testing.T) {
	var sent []alert.Reading
	send := func(_ context.Context, addr string, r alert.Reading) error {
		assert.Equal(t, "test:1", addr)
		sent = append(sent, r)
		return nil
	}

	sim := New(Config{Addr: "test:1", Interval: time.Millisecond, Count: 20, Seed: 3, StressProbability: 0.4},
		send, log.Discard())
	stats, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, stats.Ticks)
	assert.Equal(t, len(sent), stats.Sent)
	assert.Zero(t, stats.Failed)
	for _, r := range sent {
		assert.Equal(t, alert.ZoneStress, alert.ClassifyEDA(r.EDA))
	}
}

func TestRunCountsFailures(t *testing.T) {
	send := func(context.Context, string, alert.Reading) error { return stderrors.New("refused") }
	sim := New(Config{Interval: time.Millisecond, Count: 4, Seed: 1, StressProbability: 1}, send, log.Discard())

	stats, err := sim.Run(context.Background())
	require.NoError(t, err)
	// Ticks 1 and 3 are stressed
	assert.Equal(t, 2, stats.Failed)
	assert.Zero(t, stats.Sent)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim := New(Config{Interval: time.Hour, Seed: 1}, func(context.Context, string, alert.Reading) error { return nil }, log.Discard())

	stats, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.Ticks)
}

// Package sensor simulates a wrist-worn biometric sensor that alternates
// between relaxed and stressed episodes.
package sensor

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/felixgeelhaar/stressguard/internal/alert"
	"github.com/felixgeelhaar/stressguard/internal/log"
)

// Channel describes the simulated range of one sensor
type Channel struct {
	Name   string
	Min    float64
	Max    float64
	Start  float64
	Normal [2]float64
	Stress [2]float64
}

// Channels are the ranges observed for relaxed and stressed wearers
var Channels = map[string]Channel{
	"bvp":  {Name: "bvp", Min: -20, Max: 20, Start: 2.3, Normal: [2]float64{-16.5, 16.0}, Stress: [2]float64{-16.5, 17.8}},
	"eda":  {Name: "eda", Min: 0.2, Max: 5.0, Start: 0.4, Normal: [2]float64{0.32, 1.0}, Stress: [2]float64{2.0, 3.87}},
	"temp": {Name: "temp", Min: 31.0, Max: 34.0, Start: 32.5, Normal: [2]float64{31.47, 32.68}, Stress: [2]float64{32.77, 33.25}},
}

// Sender delivers a reading to the alert receiver
type Sender func(ctx context.Context, addr string, r alert.Reading) error

// Config controls a simulation run
type Config struct {
	Addr     string
	Interval time.Duration
	// Count stops the run after this many ticks, 0 runs until cancelled
	Count int
	Seed  uint64
	// StressProbability is the chance per tick of switching episodes
	StressProbability float64
}

// DefaultConfig returns a two-second cadence against the default receiver
func DefaultConfig() Config {
	return Config{
		Addr:              alert.DefaultAddr,
		Interval:          2 * time.Second,
		StressProbability: 0.25,
	}
}

// Stats summarises a finished run
type Stats struct {
	Ticks  int
	Sent   int
	Failed int
}

// Simulator generates readings and sends an alert on every tick spent in
// the stress zone
type Simulator struct {
	cfg      Config
	rng      *rand.Rand
	send     Sender
	logger   *log.Logger
	stressed bool
	current  alert.Reading
}

// New creates a simulator. A nil sender uses alert.Send.
func New(cfg Config, send Sender, logger *log.Logger) *Simulator {
	if send == nil {
		send = alert.Send
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulator{
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		send:   send,
		logger: logger,
		current: alert.Reading{
			BVP:  Channels["bvp"].Start,
			EDA:  Channels["eda"].Start,
			Temp: Channels["temp"].Start,
		},
	}
}

// Next advances the simulation by one tick and returns the new reading
func (s *Simulator) Next() alert.Reading {
	if s.rng.Float64() < s.cfg.StressProbability {
		s.stressed = !s.stressed
	}

	pick := func(c Channel) [2]float64 {
		if s.stressed {
			return c.Stress
		}
		return c.Normal
	}

	s.current = alert.Reading{
		BVP:  s.step(s.current.BVP, Channels["bvp"], pick(Channels["bvp"])),
		EDA:  s.step(s.current.EDA, Channels["eda"], pick(Channels["eda"])),
		Temp: s.step(s.current.Temp, Channels["temp"], pick(Channels["temp"])),
	}
	return s.current
}

// step moves value halfway towards a random target inside zone, clamped to
// the channel range
func (s *Simulator) step(value float64, c Channel, zone [2]float64) float64 {
	target := zone[0] + s.rng.Float64()*(zone[1]-zone[0])
	next := value + (target-value)*0.5
	// EDA drives the zone, so it switches band as soon as the episode does
	if c.Name == "eda" && (next < zone[0] || next > zone[1]) {
		next = target
	}
	return math.Max(c.Min, math.Min(c.Max, next))
}

// Run ticks until ctx is cancelled or Count ticks have elapsed
func (s *Simulator) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		r := s.Next()
		stats.Ticks++
		zone := alert.ClassifyEDA(r.EDA)
		s.logger.Debug("sensor reading", "bvp", r.BVP, "eda", r.EDA, "temp", r.Temp, "zone", string(zone))

		if zone == alert.ZoneStress {
			if err := s.send(ctx, s.cfg.Addr, r); err != nil {
				stats.Failed++
				s.logger.WithError(err).Warn("alert not delivered")
			} else {
				stats.Sent++
				s.logger.Info("stress alert sent", "eda", r.EDA)
			}
		}

		if s.cfg.Count > 0 && stats.Ticks >= s.cfg.Count {
			return stats, nil
		}

		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-ticker.C:
		}
	}
}

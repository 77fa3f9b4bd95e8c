package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	WorldID    string `yaml:"world_id"`
	TickRateHz int    `yaml:"tick_rate_hz"`
	Workers    int    `yaml:"workers"`

	World      World      `yaml:"world"`
	Worker     Worker     `yaml:"worker"`
	Pathfinder Pathfinder `yaml:"pathfinder"`

	TickLogEveryTicks int `yaml:"tick_log_every_ticks"`
}

type World struct {
	Seed   int64 `yaml:"seed"`
	SizeX  int   `yaml:"size_x"`
	SizeZ  int   `yaml:"size_z"`
	Height int   `yaml:"height"`
}

type Worker struct {
	MoveSpeedBps     float64 `yaml:"move_speed_bps"`
	WorkSeconds      float64 `yaml:"work_seconds"`
	IdlePauseSeconds float64 `yaml:"idle_pause_seconds"`
	WanderWaitMinS   float64 `yaml:"wander_wait_min_s"`
	WanderWaitMaxS   float64 `yaml:"wander_wait_max_s"`
	WanderRadiusMin  int     `yaml:"wander_radius_min"`
	WanderRadiusMax  int     `yaml:"wander_radius_max"`
	WanderAttempts   int     `yaml:"wander_attempts"`
}

type Pathfinder struct {
	MaxExpansions int `yaml:"max_expansions"`
}

// Default returns the tuning used when no file is given.
func Default() Tuning {
	return Tuning{
		WorldID:    "colony_1",
		TickRateHz: 20,
		Workers:    4,
		World: World{
			Seed:   1337,
			SizeX:  256,
			SizeZ:  256,
			Height: 64,
		},
		Worker: Worker{
			MoveSpeedBps:     4.0,
			WorkSeconds:      0.5,
			IdlePauseSeconds: 0.5,
			WanderWaitMinS:   2.0,
			WanderWaitMaxS:   6.0,
			WanderRadiusMin:  1,
			WanderRadiusMax:  10,
			WanderAttempts:   8,
		},
		Pathfinder: Pathfinder{
			MaxExpansions: 10000,
		},
		TickLogEveryTicks: 100,
	}
}

// Load reads a tuning file over the defaults, so partial files are fine.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be positive")
	}
	return t, nil
}

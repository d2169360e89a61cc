package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz     int `yaml:"tick_rate_hz"`
	TickDurationMs int `yaml:"tick_duration_ms"`

	Seed           int64   `yaml:"seed"`
	StreamRadius   float64 `yaml:"stream_radius"`
	GenWorkers     int     `yaml:"gen_workers"`
	SaveEveryTicks int     `yaml:"save_every_ticks"`

	BiomeRegionSize int `yaml:"biome_region_size"`

	DataDir      string `yaml:"data_dir"`
	ObserverAddr string `yaml:"observer_addr"`
}

// Defaults are applied for any zero field after Load.
func Defaults() Tuning {
	return Tuning{
		TickRateHz:      20,
		Seed:            1,
		StreamRadius:    8,
		GenWorkers:      4,
		SaveEveryTicks:  1200,
		BiomeRegionSize: 96,
		DataDir:         "data",
		ObserverAddr:    "127.0.0.1:8765",
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

func (t *Tuning) applyDefaults() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.StreamRadius <= 0 {
		t.StreamRadius = d.StreamRadius
	}
	if t.GenWorkers <= 0 {
		t.GenWorkers = d.GenWorkers
	}
	if t.SaveEveryTicks <= 0 {
		t.SaveEveryTicks = d.SaveEveryTicks
	}
	if t.BiomeRegionSize <= 0 {
		t.BiomeRegionSize = d.BiomeRegionSize
	}
	if t.DataDir == "" {
		t.DataDir = d.DataDir
	}
	if t.ObserverAddr == "" {
		t.ObserverAddr = d.ObserverAddr
	}
}

package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds per-class execution latencies and reservation-station
// capacities.
type TimingConfig struct {
	// IntLatency is the latency of add and addi. Default: 1 cycle.
	IntLatency uint64 `json:"int_latency"`

	// LoadLatency is the latency of fld on the shared load/store unit.
	// Default: 1 cycle.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the latency of fsd on the shared load/store unit.
	// Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`

	// FPAddLatency is the latency of fadd and fsub. Default: 3 cycles.
	FPAddLatency uint64 `json:"fp_add_latency"`

	// FPMulLatency is the latency of fmul. Default: 4 cycles.
	FPMulLatency uint64 `json:"fp_mul_latency"`

	// FPDivLatency is the latency of fdiv. Default: 8 cycles.
	FPDivLatency uint64 `json:"fp_div_latency"`

	// BranchLatency is the latency of bne. Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// IntStations is the number of integer reservation-station entries.
	// Default: 4.
	IntStations int `json:"int_stations"`

	// LoadStations is the number of load buffer entries. Default: 2.
	LoadStations int `json:"load_stations"`

	// StoreStations is the number of store buffer entries. Default: 2.
	StoreStations int `json:"store_stations"`

	// FPAddStations is the number of FP add entries. Default: 3.
	FPAddStations int `json:"fp_add_stations"`

	// FPMulStations is the number of FP multiply entries. Default: 4.
	FPMulStations int `json:"fp_mul_stations"`

	// FPDivStations is the number of FP divide entries. Default: 2.
	FPDivStations int `json:"fp_div_stations"`

	// BranchStations is the number of branch unit entries. Default: 1.
	BranchStations int `json:"branch_stations"`
}

// DefaultTimingConfig returns the default latencies and capacities.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		IntLatency:     1,
		LoadLatency:    1,
		StoreLatency:   1,
		FPAddLatency:   3,
		FPMulLatency:   4,
		FPDivLatency:   8,
		BranchLatency:  1,
		IntStations:    4,
		LoadStations:   2,
		StoreStations:  2,
		FPAddStations:  3,
		FPMulStations:  4,
		FPDivStations:  2,
		BranchStations: 1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that every latency and capacity is positive.
func (c *TimingConfig) Validate() error {
	latencies := []struct {
		name  string
		value uint64
	}{
		{"int_latency", c.IntLatency},
		{"load_latency", c.LoadLatency},
		{"store_latency", c.StoreLatency},
		{"fp_add_latency", c.FPAddLatency},
		{"fp_mul_latency", c.FPMulLatency},
		{"fp_div_latency", c.FPDivLatency},
		{"branch_latency", c.BranchLatency},
	}
	for _, l := range latencies {
		if l.value == 0 {
			return fmt.Errorf("%s must be > 0", l.name)
		}
	}

	stations := []struct {
		name  string
		value int
	}{
		{"int_stations", c.IntStations},
		{"load_stations", c.LoadStations},
		{"store_stations", c.StoreStations},
		{"fp_add_stations", c.FPAddStations},
		{"fp_mul_stations", c.FPMulStations},
		{"fp_div_stations", c.FPDivStations},
		{"branch_stations", c.BranchStations},
	}
	for _, s := range stations {
		if s.value <= 0 {
			return fmt.Errorf("%s must be > 0", s.name)
		}
	}

	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}

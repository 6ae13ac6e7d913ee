package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerURL  string `yaml:"server_url"`
	PlayerName string `yaml:"player_name"`
	WorldID    string `yaml:"world_id"`

	ChunkSize  int `yaml:"chunk_size"`
	LoadRadius int `yaml:"load_radius"`
	TickRateHz int `yaml:"tick_rate_hz"`

	CameraMinZoom        float64 `yaml:"camera_min_zoom"`
	CameraMaxZoom        float64 `yaml:"camera_max_zoom"`
	CameraSendIntervalMs int     `yaml:"camera_send_interval_ms"`

	ReconnectBaseMs      int `yaml:"reconnect_base_ms"`
	ReconnectCapMs       int `yaml:"reconnect_cap_ms"`
	ReconnectMaxAttempts int `yaml:"reconnect_max_attempts"`

	FogSaveEveryTicks int `yaml:"fog_save_every_ticks"`
	RevealDurationMs  int `yaml:"reveal_duration_ms"`
}

func Defaults() Config {
	return Config{
		ServerURL:  "ws://localhost:8080/v1/ws",
		PlayerName: "settler",

		ChunkSize:  512,
		LoadRadius: 3,
		TickRateHz: 10,

		CameraMinZoom:        0.3,
		CameraMaxZoom:        2.0,
		CameraSendIntervalMs: 100,

		ReconnectBaseMs:      1000,
		ReconnectCapMs:       10000,
		ReconnectMaxAttempts: 5,

		FogSaveEveryTicks: 100,
		RevealDurationMs:  1500,
	}
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("client.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("client.yaml: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.LoadRadius < 0 {
		return fmt.Errorf("load_radius must be non-negative, got %d", c.LoadRadius)
	}
	if c.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %d", c.TickRateHz)
	}
	if c.CameraMinZoom <= 0 || c.CameraMaxZoom < c.CameraMinZoom {
		return fmt.Errorf("bad camera zoom bounds [%v, %v]", c.CameraMinZoom, c.CameraMaxZoom)
	}
	if c.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("reconnect_max_attempts must be non-negative, got %d", c.ReconnectMaxAttempts)
	}
	return nil
}

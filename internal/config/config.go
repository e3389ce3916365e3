package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		PlaylistTTL     string `yaml:"playlist_ttl"`
		AnswerTTL       string `yaml:"answer_ttl"`
		Dwell           string `yaml:"dwell"`
		Banner          string `yaml:"banner"`
		Scoring         string `yaml:"scoring"`
		DefaultPlaylist string `yaml:"default_playlist"`
		// Validation is "local" (answers travel with the questions) or
		// "remote" (answers are checked against a validator).
		Validation       string `yaml:"validation"`
		ValidatorURL     string `yaml:"validator_url"`
		ValidatorTimeout string `yaml:"validator_timeout"`
		// SourceURL points at an external question backend; empty generates
		// questions from the configured playlists.
		SourceURL       string `yaml:"source_url"`
		WithholdAnswers bool   `yaml:"withhold_answers"`
	} `yaml:"quiz"`
}

const (
	ValidationLocal  = "local"
	ValidationRemote = "remote"
)

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DurationOr parses a duration string or returns the fallback if empty or invalid.
func DurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

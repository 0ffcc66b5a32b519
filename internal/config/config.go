package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string        `json:"log_level" yaml:"log_level"`
	API      APIConfig     `json:"api" yaml:"api"`
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	Scorer   ScorerConfig  `json:"scorer" yaml:"scorer"`
	Lockout  LockoutConfig `json:"lockout" yaml:"lockout"`
	Rules    RulesConfig   `json:"rules" yaml:"rules"`
	Ingest   IngestConfig  `json:"ingest" yaml:"ingest"`
	Alerts   AlertsConfig  `json:"alerts" yaml:"alerts"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type ScorerConfig struct {
	URL               string        `json:"url" yaml:"url"`
	ConnectTimeout    time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout"`
	HighRiskThreshold float64       `json:"high_risk_threshold" yaml:"high_risk_threshold"`
}

type LockoutConfig struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"`
	BlockDuration    time.Duration `json:"block_duration" yaml:"block_duration"`
}

type RulesConfig struct {
	HighAmountThreshold     float64       `json:"high_amount_threshold" yaml:"high_amount_threshold"`
	SuspiciousIPPrefix      string        `json:"suspicious_ip_prefix" yaml:"suspicious_ip_prefix"`
	VelocityThreshold       int           `json:"velocity_threshold" yaml:"velocity_threshold"`
	SpikeMultiplier         float64       `json:"spike_multiplier" yaml:"spike_multiplier"`
	FailedAttemptsThreshold int           `json:"failed_attempts_threshold" yaml:"failed_attempts_threshold"`
	HistoryWindow           time.Duration `json:"history_window" yaml:"history_window"`
}

type IngestConfig struct {
	ChannelBuffer int         `json:"channel_buffer" yaml:"channel_buffer"`
	Kafka         KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type AlertsConfig struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
	StoreLimit int    `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		API:      APIConfig{Enabled: true, Addr: ":8080"},
		Storage:  StorageConfig{Driver: "sqlite", DSN: "file:fraudsim.db?_pragma=busy_timeout(5000)"},
		Scorer: ScorerConfig{
			URL:               "http://127.0.0.1:5000/predict-fraud",
			ConnectTimeout:    5 * time.Second,
			ReadTimeout:       10 * time.Second,
			HighRiskThreshold: 0.70,
		},
		Lockout: LockoutConfig{FailureThreshold: 3, BlockDuration: 24 * time.Hour},
		Rules: RulesConfig{
			HighAmountThreshold:     100000,
			SuspiciousIPPrefix:      "172.",
			VelocityThreshold:       3,
			SpikeMultiplier:         3.0,
			FailedAttemptsThreshold: 2,
			HistoryWindow:           5 * time.Minute,
		},
		Ingest: IngestConfig{ChannelBuffer: 1000, Kafka: KafkaConfig{Enabled: false}},
		Alerts: AlertsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Scorer.URL == "" {
		cfg.Scorer.URL = def.Scorer.URL
	}
	if cfg.Scorer.ConnectTimeout <= 0 {
		cfg.Scorer.ConnectTimeout = def.Scorer.ConnectTimeout
	}
	if cfg.Scorer.ReadTimeout <= 0 {
		cfg.Scorer.ReadTimeout = def.Scorer.ReadTimeout
	}
	if cfg.Scorer.HighRiskThreshold <= 0 {
		cfg.Scorer.HighRiskThreshold = def.Scorer.HighRiskThreshold
	}
	if cfg.Lockout.FailureThreshold <= 0 {
		cfg.Lockout.FailureThreshold = def.Lockout.FailureThreshold
	}
	if cfg.Lockout.BlockDuration <= 0 {
		cfg.Lockout.BlockDuration = def.Lockout.BlockDuration
	}
	if cfg.Rules.HighAmountThreshold <= 0 {
		cfg.Rules.HighAmountThreshold = def.Rules.HighAmountThreshold
	}
	if cfg.Rules.VelocityThreshold <= 0 {
		cfg.Rules.VelocityThreshold = def.Rules.VelocityThreshold
	}
	if cfg.Rules.SpikeMultiplier <= 0 {
		cfg.Rules.SpikeMultiplier = def.Rules.SpikeMultiplier
	}
	if cfg.Rules.FailedAttemptsThreshold <= 0 {
		cfg.Rules.FailedAttemptsThreshold = def.Rules.FailedAttemptsThreshold
	}
	if cfg.Rules.HistoryWindow <= 0 {
		cfg.Rules.HistoryWindow = def.Rules.HistoryWindow
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = def.Ingest.ChannelBuffer
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = def.Alerts.StoreLimit
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = def.Storage.Driver
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "postgres", "postgresql", "memory":
	default:
		return fmt.Errorf("unsupported storage.driver %q", cfg.Storage.Driver)
	}
	if cfg.Scorer.HighRiskThreshold <= 0 || cfg.Scorer.HighRiskThreshold > 1 {
		return errors.New("scorer.high_risk_threshold must be in (0, 1]")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	return nil
}

// Manager holds the active config behind an atomic pointer so handlers and
// workers always read a consistent snapshot.
type Manager struct {
	path string
	cfg  atomic.Value
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	return m, nil
}

// NewStaticManager wraps an already-built config; used by tests and by main
// when no config file is given.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return nil, errors.New("no config file to reload")
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	return cfg, nil
}

// Package config loads the daemon configuration from YAML. Any error in
// the configuration is fatal at startup: the daemon never runs with a
// partially understood rule set.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/owmaster/internal/classify"
)

// Duration parses YAML durations in time.ParseDuration syntax.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// File is the root of the YAML document.
type File struct {
	OwMaster       DaemonSection                     `yaml:"owmaster"`
	MQTT           MQTTSection                       `yaml:"mqtt"`
	HTTP           HTTPSection                       `yaml:"http"`
	StateTemplates map[string]map[string]BandSection `yaml:"state_templates"`
	Devices        []DeviceSection                   `yaml:"devices"`
}

// DaemonSection holds the scan cadences and logging.
type DaemonSection struct {
	ScanInterval      Duration `yaml:"scan_interval"`
	AlarmScanInterval Duration `yaml:"alarm_scan_interval"`
	SettleWindow      Duration `yaml:"settle_window"`
	GPIOChip          string   `yaml:"gpio_chip"`
	LogLevel          string   `yaml:"log_level"`
}

type MQTTSection struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

type HTTPSection struct {
	Addr string `yaml:"addr"`
}

// BandSection is one named value range in a state template.
type BandSection struct {
	Low   *float64 `yaml:"low"`
	High  *float64 `yaml:"high"`
	Guess bool     `yaml:"guess"`
}

// DeviceSection describes one bus device and its channels.
type DeviceSection struct {
	ID       string                    `yaml:"id"`
	Alias    string                    `yaml:"alias"`
	Type     string                    `yaml:"type"`
	Min      *float64                  `yaml:"min"`
	Max      *float64                  `yaml:"max"`
	Channels map[string]ChannelSection `yaml:"channels"`
}

// ChannelSection describes one channel. Mode strings follow the form
// "input momentary", "input toggle", "output" or "adc", optionally
// suffixed with "active low" or "active high".
type ChannelSection struct {
	Mode   string                 `yaml:"mode"`
	States string                 `yaml:"states"`
	Pin    *int                   `yaml:"pin"`
	Unit   string                 `yaml:"unit"`
	Events map[string]RuleSection `yaml:"events"`
}

// RuleSection is the action set bound to one channel state.
type RuleSection struct {
	When         string          `yaml:"when"`
	IncludeReset bool            `yaml:"include_reset"`
	Actions      []ActionSection `yaml:"actions"`
}

// ActionSection is a single conditional action.
type ActionSection struct {
	Action       string `yaml:"action"`
	Target       string `yaml:"target"`
	Value        *bool  `yaml:"value"`
	Command      string `yaml:"command"`
	When         string `yaml:"when"`
	IncludeReset bool   `yaml:"include_reset"`
}

// Load reads and parses the file at path, applies defaults and
// environment overrides.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and environment
// overrides.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	f.applyDefaults()
	f.applyEnv()
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.OwMaster.ScanInterval == 0 {
		f.OwMaster.ScanInterval = Duration(30 * time.Second)
	}
	if f.OwMaster.AlarmScanInterval == 0 {
		f.OwMaster.AlarmScanInterval = Duration(time.Second)
	}
	if f.OwMaster.SettleWindow == 0 {
		f.OwMaster.SettleWindow = Duration(classify.DefaultSettleWindow)
	}
	if f.OwMaster.LogLevel == "" {
		f.OwMaster.LogLevel = "info"
	}
	if f.MQTT.ClientID == "" {
		f.MQTT.ClientID = "owmaster"
	}
	if f.HTTP.Addr == "" {
		f.HTTP.Addr = ":8080"
	}
}

// applyEnv lets deployment settings override the file without editing it.
func (f *File) applyEnv() {
	if v := os.Getenv("OWMASTER_MQTT_BROKER"); v != "" {
		f.MQTT.Broker = v
	}
	if v := os.Getenv("OWMASTER_HTTP_ADDR"); v != "" {
		f.HTTP.Addr = v
	}
	if v := os.Getenv("OWMASTER_LOG_LEVEL"); v != "" {
		f.OwMaster.LogLevel = v
	}
}

// ParseLevel maps a config log level string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

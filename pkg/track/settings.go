package track

import (
	"encoding/json"
	"os"
	"strconv"
)

// PerClassParameters are the tunable thresholds looked up by className.
// Zero values are replaced with the package defaults by resolveClassParams.
type PerClassParameters struct {
	MinScore              float32
	MinConfirmationFrames int
	IoUThreshold          float32
	MovementThreshold     float32
}

// Package defaults, used whenever a PerClassParameters field is left zero.
const (
	DefaultMinScore              = 0.7
	DefaultMinConfirmationFrames = 3
	DefaultIoUThreshold          = 0.5
	DefaultMovementThreshold     = 10
	DefaultMaxMisses             = 5
	DefaultMaxLostFrames         = 40
)

// SettingKey names the fixed (non-per-class) keys recognized in Settings.
type SettingKey string

const (
	SettingEnabledClasses       SettingKey = "enabledClasses"
	SettingBasicDetectionsOnly  SettingKey = "basicDetectionsOnly"
)

const (
	suffixMinScore              = "-minScore"
	suffixMinConfirmationFrames = "-minConfirmationFrames"
	suffixIoUThreshold          = "-iouThreshold"
	suffixMovementThreshold     = "-movementThreshold"
)

// Settings is the loosely-typed settings map passed alongside each Update
// call. It is re-read on every call rather than snapshotted once, so
// mutating the map a caller passes in between calls takes effect on the
// next frame.
type Settings map[string]any

func (s Settings) bool(key SettingKey) (bool, bool) {
	v, ok := s[string(key)]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (s Settings) stringSlice(key SettingKey) ([]string, bool) {
	v, ok := s[string(key)]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out, true
	}
	return nil, false
}

// classFloat looks up "{className}{suffix}" in the settings map.
func (s Settings) classFloat(className, suffix string) (float32, bool) {
	v, ok := s[className+suffix]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float32:
		return t, true
	case float64:
		return float32(t), true
	case int:
		return float32(t), true
	case string:
		f, err := strconv.ParseFloat(t, 32)
		if err != nil {
			return 0, false
		}
		return float32(f), true
	}
	return 0, false
}

func (s Settings) classInt(className, suffix string) (int, bool) {
	f, ok := s.classFloat(className, suffix)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// EnabledClasses returns the set of classes configured to be tracked. An
// empty/absent setting means every class is enabled.
func (s Settings) EnabledClasses() (map[string]bool, bool) {
	list, ok := s.stringSlice(SettingEnabledClasses)
	if !ok || len(list) == 0 {
		return nil, false
	}
	set := make(map[string]bool, len(list))
	for _, c := range list {
		set[c] = true
	}
	return set, true
}

// BasicDetectionsOnly reports whether the "basicDetectionsOnly" bypass is set.
func (s Settings) BasicDetectionsOnly() bool {
	v, _ := s.bool(SettingBasicDetectionsOnly)
	return v
}

// resolveClassParams merges defaults, Config.ClassDefaults, and any
// per-class overrides present in settings, for one className.
func resolveClassParams(className string, defaults PerClassParameters, settings Settings) PerClassParameters {
	p := defaults
	if p.MinScore == 0 {
		p.MinScore = DefaultMinScore
	}
	if p.MinConfirmationFrames == 0 {
		p.MinConfirmationFrames = DefaultMinConfirmationFrames
	}
	if p.IoUThreshold == 0 {
		p.IoUThreshold = DefaultIoUThreshold
	}
	if p.MovementThreshold == 0 {
		p.MovementThreshold = DefaultMovementThreshold
	}

	if v, ok := settings.classFloat(className, suffixMinScore); ok {
		p.MinScore = v
	}
	if v, ok := settings.classInt(className, suffixMinConfirmationFrames); ok {
		p.MinConfirmationFrames = v
	}
	if v, ok := settings.classFloat(className, suffixIoUThreshold); ok {
		p.IoUThreshold = v
	}
	if v, ok := settings.classFloat(className, suffixMovementThreshold); ok {
		p.MovementThreshold = v
	}
	return p
}

// AssociationStrategy selects which associator a Tracker uses.
type AssociationStrategy int

const (
	GreedyIoUStrategy AssociationStrategy = iota
	HungarianStrategy
)

// Config is the Tracker's construction-time configuration.
type Config struct {
	MaxMisses      int                 `json:"maxMisses"`
	MaxEmptyFrames int                 `json:"maxEmptyFrames"`
	MaxLostFrames  int                 `json:"maxLostFrames"`
	UseMatrix      bool                `json:"useMatrix"`
	ClassDefaults  PerClassParameters  `json:"classDefaults"`
	EnabledClasses []string            `json:"enabledClasses"`
	Settings       Settings            `json:"settings"`
}

// NewConfig returns a Config populated with package defaults.
func NewConfig() *Config {
	return &Config{
		MaxMisses:     DefaultMaxMisses,
		MaxLostFrames: DefaultMaxLostFrames,
		Settings:      Settings{},
	}
}

func (c *Config) strategy() AssociationStrategy {
	if c.UseMatrix {
		return HungarianStrategy
	}
	return GreedyIoUStrategy
}

// LoadConfig reads a JSON-encoded Config from filename, the way
// server/config.LoadConfig loads the teacher's Config.
func LoadConfig(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg := NewConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// classIsEnabled reports whether className should be tracked. The per-call
// settings override takes precedence over the Config's own construction-time
// Settings, which in turn takes precedence over its plain EnabledClasses list.
func (c *Config) classIsEnabled(className string, settings Settings) bool {
	if set, ok := settings.EnabledClasses(); ok {
		return set[className]
	}
	if set, ok := c.Settings.EnabledClasses(); ok {
		return set[className]
	}
	if len(c.EnabledClasses) == 0 {
		return true
	}
	for _, name := range c.EnabledClasses {
		if name == className {
			return true
		}
	}
	return false
}

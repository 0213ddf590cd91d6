package domain

import (
	"strconv"
	"strings"
)

// Settings keys in the persisted key/value table.
const (
	SettingOpenAIAPIKey    = "openai_api_key"
	SettingMinInterval     = "min_interval"
	SettingMaxInterval     = "max_interval"
	SettingSendInterval    = "send_interval"
	SettingAutoSendEnabled = "auto_send_enabled"
)

// Default delays (seconds) seeded on first start.
const (
	DefaultMinInterval  = 10
	DefaultMaxInterval  = 30
	DefaultSendInterval = 5
)

// Settings is the flat settings mapping in typed form. Intervals are seconds.
type Settings struct {
	OpenAIAPIKey    string `json:"openai_api_key"`
	MinInterval     int    `json:"min_interval"`
	MaxInterval     int    `json:"max_interval"`
	SendInterval    int    `json:"send_interval"`
	AutoSendEnabled bool   `json:"auto_send_enabled"`
}

// SettingsFromMap builds Settings from the raw key/value rows, applying
// defaults for missing or unparseable values and clamping so that
// MaxInterval >= MinInterval.
func SettingsFromMap(values map[string]string) Settings {
	s := Settings{
		OpenAIAPIKey:    values[SettingOpenAIAPIKey],
		MinInterval:     parseIntSetting(values[SettingMinInterval], DefaultMinInterval),
		MaxInterval:     parseIntSetting(values[SettingMaxInterval], DefaultMaxInterval),
		SendInterval:    parseIntSetting(values[SettingSendInterval], DefaultSendInterval),
		AutoSendEnabled: parseBoolSetting(values[SettingAutoSendEnabled]),
	}
	s.Clamp()
	return s
}

// Clamp enforces the interval invariant: max = max(min, max).
func (s *Settings) Clamp() {
	if s.MaxInterval < s.MinInterval {
		s.MaxInterval = s.MinInterval
	}
}

// ToMap converts Settings back to key/value rows for persistence.
func (s Settings) ToMap() map[string]string {
	autoSend := "0"
	if s.AutoSendEnabled {
		autoSend = "1"
	}
	return map[string]string{
		SettingOpenAIAPIKey:    s.OpenAIAPIKey,
		SettingMinInterval:     strconv.Itoa(s.MinInterval),
		SettingMaxInterval:     strconv.Itoa(s.MaxInterval),
		SettingSendInterval:    strconv.Itoa(s.SendInterval),
		SettingAutoSendEnabled: autoSend,
	}
}

func parseIntSetting(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseBoolSetting(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/stake-plus/catchfleet/src/data"
	"github.com/stake-plus/catchfleet/src/unit"
)

// Runtime holds the tunables that may be overridden from the settings table.
type Runtime struct {
	Timing                  unit.Timing
	Identities              unit.Identities
	RestoreCaptchaAsStopped bool
}

// LoadRuntime reads the settings table, then env, then built-in defaults.
func LoadRuntime(db *gorm.DB) Runtime {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("config: load settings: %v", err)
	}

	def := unit.DefaultTiming()
	ids := unit.DefaultIdentities()

	timing := unit.Timing{
		WorkDuration:   getDurationSetting("work_duration", "CF_WORK_DURATION", def.WorkDuration),
		RestDuration:   getDurationSetting("rest_duration", "CF_REST_DURATION", def.RestDuration),
		BalanceInitial: getDurationSetting("balance_initial_delay", "CF_BALANCE_INITIAL_DELAY", def.BalanceInitial),
		BalanceEvery:   getDurationSetting("balance_interval", "CF_BALANCE_INTERVAL", def.BalanceEvery),
		HintRetryMin:   getDurationSetting("hint_retry_min", "CF_HINT_RETRY_MIN", def.HintRetryMin),
		HintRetryMax:   getDurationSetting("hint_retry_max", "CF_HINT_RETRY_MAX", def.HintRetryMax),
		ReadyTimeout:   getDurationSetting("ready_timeout", "CF_READY_TIMEOUT", def.ReadyTimeout),
	}
	if timing.HintRetryMax < timing.HintRetryMin {
		timing.HintRetryMax = timing.HintRetryMin
	}

	emojis := ids.CooldownEmojis
	if raw := GetSetting("cooldown_emojis", "CF_COOLDOWN_EMOJIS", ""); raw != "" {
		if parsed := parseCSV(raw); len(parsed) > 0 {
			emojis = parsed
		}
	}

	return Runtime{
		Timing: timing,
		Identities: unit.Identities{
			GameID:               GetSetting("game_bot_id", "CF_GAME_BOT_ID", ids.GameID),
			PredictorID:          GetSetting("predictor_bot_id", "CF_PREDICTOR_BOT_ID", ids.PredictorID),
			SecondaryPredictorID: GetSetting("secondary_predictor_bot_id", "CF_SECONDARY_PREDICTOR_BOT_ID", ids.SecondaryPredictorID),
			CooldownEmojis:       emojis,
		},
		RestoreCaptchaAsStopped: getBoolSetting("restore_captcha_as_stopped", "CF_RESTORE_CAPTCHA_AS_STOPPED", false),
	}
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" && envKey != "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func getBoolSetting(settingKey, envKey string, defaultValue bool) bool {
	if v := data.GetSetting(settingKey); v != "" {
		return parseBoolDefault(v, defaultValue)
	}
	if envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			return parseBoolDefault(v, defaultValue)
		}
	}
	return defaultValue
}

// getDurationSetting accepts Go durations ("90s") or bare milliseconds.
func getDurationSetting(settingKey, envKey string, defaultValue time.Duration) time.Duration {
	raw := GetSetting(settingKey, envKey, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	log.Printf("config: ignoring invalid duration %s=%q", settingKey, raw)
	return defaultValue
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseCSV(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

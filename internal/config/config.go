package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"parkingserver/internal/model"
)

// ErrMissingCredential is returned when the telemetry write key is not configured.
var ErrMissingCredential = errors.New("missing required environment variable THINGSPEAK_WRITE_API")

// DefaultSlotBoxes are the four slots of the reference camera layout.
var DefaultSlotBoxes = []model.Region{
	{X1: 50, Y1: 100, X2: 200, Y2: 250},
	{X1: 250, Y1: 100, X2: 400, Y2: 250},
	{X1: 450, Y1: 100, X2: 600, Y2: 250},
	{X1: 650, Y1: 100, X2: 800, Y2: 250},
}

type Config struct {
	Port            int
	LogDirectory    string
	StaticDirectory string

	CameraIndex         int
	SlotBoxes           []model.Region
	LuminanceThreshold  float64
	FilledThreshold     float64
	DetectInterval      time.Duration
	CameraRetryInterval time.Duration
	StopTimeout         time.Duration
	PreviewEnabled      bool

	ThingSpeakURL         string
	ThingSpeakWriteKey    string
	ThingSpeakFields      int
	ThingSpeakTimeout     time.Duration
	ThingSpeakMinInterval time.Duration
}

// Load reads the configuration from the environment. Variables from the file
// named by ENV_FILE (default .env) are applied first without overriding ones
// already set. A missing write key or malformed slot list is an error.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	boxes := DefaultSlotBoxes
	if raw := os.Getenv("SLOT_BOXES"); raw != "" {
		parsed, err := ParseSlotBoxes(raw)
		if err != nil {
			return nil, err
		}
		boxes = parsed
	}

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 5001),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		StaticDirectory: getEnv("STATIC_DIR", filepath.Join(".", "static")),

		CameraIndex:         getEnvAsInt("CAMERA_INDEX", 0),
		SlotBoxes:           boxes,
		LuminanceThreshold:  getEnvAsFloat("LUMINANCE_THRESHOLD", 100),
		FilledThreshold:     getEnvAsFloat("FILLED_THRESHOLD", 0.4),
		DetectInterval:      getEnvAsSeconds("DETECT_INTERVAL", 200*time.Millisecond),
		CameraRetryInterval: getEnvAsSeconds("CAMERA_RETRY_INTERVAL", time.Second),
		StopTimeout:         getEnvAsSeconds("STOP_TIMEOUT", 2*time.Second),
		PreviewEnabled:      getEnvAsBool("PREVIEW_ENABLED", false),

		ThingSpeakURL:         getEnv("THINGSPEAK_URL", "https://api.thingspeak.com/update"),
		ThingSpeakWriteKey:    os.Getenv("THINGSPEAK_WRITE_API"),
		ThingSpeakFields:      getEnvAsInt("THINGSPEAK_FIELDS", 4),
		ThingSpeakTimeout:     getEnvAsSeconds("THINGSPEAK_TIMEOUT", 5*time.Second),
		ThingSpeakMinInterval: getEnvAsSeconds("THINGSPEAK_MIN_INTERVAL", 15*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the options the detection loop cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ThingSpeakWriteKey) == "" {
		return ErrMissingCredential
	}
	if len(c.SlotBoxes) == 0 {
		return errors.New("no parking slots configured")
	}
	for i, r := range c.SlotBoxes {
		if !r.Valid() {
			return fmt.Errorf("slot %d: invalid region %s", i+1, r)
		}
	}
	return nil
}

// ParseSlotBoxes parses "x1,y1,x2,y2;x1,y1,x2,y2;..." into regions.
func ParseSlotBoxes(raw string) ([]model.Region, error) {
	var regions []model.Region
	for i, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		parts := strings.Split(item, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("slot %d: expected 4 coordinates, got %q", i+1, item)
		}

		var coords [4]int
		for j, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("slot %d: invalid coordinate %q: %w", i+1, p, err)
			}
			coords[j] = v
		}

		r := model.Region{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}
		if !r.Valid() {
			return nil, fmt.Errorf("slot %d: region %s has no area", i+1, r)
		}
		regions = append(regions, r)
	}

	if len(regions) == 0 {
		return nil, errors.New("SLOT_BOXES contains no regions")
	}
	return regions, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsSeconds reads a (possibly fractional) number of seconds.
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds >= 0 {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "True", "TRUE":
		return true
	case "0", "false", "False", "FALSE":
		return false
	}
	return defaultValue
}

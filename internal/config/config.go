package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed detector.yaml
var detectorYAML []byte

// Store backends
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type Config struct {
	Store    StoreConfig
	Database DatabaseConfig
	Faces    FacesConfig
	Detector DetectorConfig
	Match    MatchConfig
	Camera   CameraConfig
	Redis    RedisConfig
	Log      LogConfig
	Web      WebConfig
}

type StoreConfig struct {
	Backend    string // postgres, sqlite or memory (default sqlite)
	SQLitePath string // defaults to attendance.db
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type FacesConfig struct {
	Dir string // directory holding registration face crops (default faces)
}

// DetectorConfig holds the cascade location and the per-path detection parameters.
type DetectorConfig struct {
	CascadePath  string         `yaml:"-"`
	Registration DetectorParams `yaml:"registration"`
	Attendance   DetectorParams `yaml:"attendance"`
}

type DetectorParams struct {
	ScaleFactor  float64 `yaml:"scale_factor"`
	ShiftFactor  float64 `yaml:"shift_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	IoUThreshold float64 `yaml:"iou_threshold"`
}

type MatchConfig struct {
	Threshold         int // maximum Hamming distance for a match (default 10)
	LookalikeDistance int // registration look-alike warning distance (default 4)
}

type CameraConfig struct {
	URL          string        // HTTP snapshot URL of a network camera
	Dir          string        // directory a camera drops frames into
	PollInterval time.Duration // continuous capture cadence (default 500ms)
}

// Enabled reports whether a frame source is configured.
func (c *CameraConfig) Enabled() bool {
	return c.URL != "" || c.Dir != ""
}

type RedisConfig struct {
	Addr     string // host:port, empty disables the shared presence cache
	Password string
}

type LogConfig struct {
	Level string // debug, info, warn, error (default info)
}

type WebConfig struct {
	Host           string   // defaults to 0.0.0.0
	Port           int      // defaults to 8080
	AllowedOrigins []string // CORS origins besides localhost
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegInt is envInt that also accepts zero.
func envNonNegInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var items []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// loadDetectorDefaults parses the embedded detector parameters.
func loadDetectorDefaults() DetectorConfig {
	var dc DetectorConfig
	if err := yaml.Unmarshal(detectorYAML, &dc); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded detector.yaml: " + err.Error())
	}
	return dc
}

func Load() *Config {
	detector := loadDetectorDefaults()
	detector.CascadePath = os.Getenv("FACE_CASCADE_PATH")
	if minSize := envInt("FACE_MIN_SIZE", 0); minSize > 0 {
		detector.Registration.MinSize = minSize
		detector.Attendance.MinSize = minSize
	}
	if n := envInt("FACE_MIN_NEIGHBORS", 0); n > 0 {
		detector.Registration.MinNeighbors = n
		detector.Attendance.MinNeighbors = n
	}

	return &Config{
		Store: StoreConfig{
			Backend:    strings.ToLower(envString("ATTENDANCE_STORE", StoreSQLite)),
			SQLitePath: envString("SQLITE_PATH", "attendance.db"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Faces: FacesConfig{
			Dir: envString("FACES_DIR", "faces"),
		},
		Detector: detector,
		Match: MatchConfig{
			Threshold:         envNonNegInt("MATCH_THRESHOLD", constants.DefaultMatchThreshold),
			LookalikeDistance: envNonNegInt("LOOKALIKE_DISTANCE", constants.DefaultLookalikeDistance),
		},
		Camera: CameraConfig{
			URL:          os.Getenv("CAMERA_URL"),
			Dir:          os.Getenv("CAMERA_DIR"),
			PollInterval: time.Duration(envInt("CAMERA_POLL_INTERVAL_MS", int(constants.DefaultPollInterval/time.Millisecond))) * time.Millisecond,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"ATTENDANCE_STORE", "SQLITE_PATH", "FACES_DIR", "FACE_MIN_SIZE", "FACE_MIN_NEIGHBORS",
		"MATCH_THRESHOLD", "LOOKALIKE_DISTANCE", "CAMERA_POLL_INTERVAL_MS", "LOG_LEVEL",
		"DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Store.Backend != StoreSQLite {
		t.Errorf("expected default store 'sqlite', got '%s'", cfg.Store.Backend)
	}
	if cfg.Store.SQLitePath != "attendance.db" {
		t.Errorf("expected default sqlite path 'attendance.db', got '%s'", cfg.Store.SQLitePath)
	}
	if cfg.Faces.Dir != "faces" {
		t.Errorf("expected default faces dir 'faces', got '%s'", cfg.Faces.Dir)
	}
	if cfg.Match.Threshold != 10 {
		t.Errorf("expected default threshold 10, got %d", cfg.Match.Threshold)
	}
	if cfg.Camera.PollInterval != 500*time.Millisecond {
		t.Errorf("expected default poll interval 500ms, got %v", cfg.Camera.PollInterval)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_DetectorPathsShareMinSize(t *testing.T) {
	t.Setenv("FACE_MIN_SIZE", "")

	cfg := Load()

	if cfg.Detector.Registration.MinSize != 30 {
		t.Errorf("expected registration min size 30, got %d", cfg.Detector.Registration.MinSize)
	}
	if cfg.Detector.Attendance.MinSize != cfg.Detector.Registration.MinSize {
		t.Errorf("expected attendance min size %d, got %d",
			cfg.Detector.Registration.MinSize, cfg.Detector.Attendance.MinSize)
	}
	if cfg.Detector.Attendance.MinNeighbors != 5 {
		t.Errorf("expected min neighbors 5, got %d", cfg.Detector.Attendance.MinNeighbors)
	}
	if cfg.Detector.Registration.ScaleFactor != 1.3 {
		t.Errorf("expected registration scale factor 1.3, got %v", cfg.Detector.Registration.ScaleFactor)
	}
	if cfg.Detector.Attendance.ScaleFactor != 1.1 {
		t.Errorf("expected attendance scale factor 1.1, got %v", cfg.Detector.Attendance.ScaleFactor)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ATTENDANCE_STORE", "Postgres")
	t.Setenv("FACE_MIN_SIZE", "48")
	t.Setenv("MATCH_THRESHOLD", "0")
	t.Setenv("CAMERA_POLL_INTERVAL_MS", "250")
	t.Setenv("FACE_CASCADE_PATH", "/opt/cascade/facefinder")

	cfg := Load()

	if cfg.Store.Backend != StorePostgres {
		t.Errorf("expected store 'postgres', got '%s'", cfg.Store.Backend)
	}
	if cfg.Detector.Registration.MinSize != 48 || cfg.Detector.Attendance.MinSize != 48 {
		t.Errorf("expected both min sizes 48, got %d/%d",
			cfg.Detector.Registration.MinSize, cfg.Detector.Attendance.MinSize)
	}
	if cfg.Match.Threshold != 0 {
		t.Errorf("expected threshold 0 to be accepted, got %d", cfg.Match.Threshold)
	}
	if cfg.Camera.PollInterval != 250*time.Millisecond {
		t.Errorf("expected poll interval 250ms, got %v", cfg.Camera.PollInterval)
	}
	if cfg.Detector.CascadePath != "/opt/cascade/facefinder" {
		t.Errorf("expected cascade path override, got '%s'", cfg.Detector.CascadePath)
	}
}

func TestEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "abc")
	if got := envInt("TEST_ENV_INT", 7); got != 7 {
		t.Errorf("expected fallback 7, got %d", got)
	}

	t.Setenv("TEST_ENV_INT", "-3")
	if got := envInt("TEST_ENV_INT", 7); got != 7 {
		t.Errorf("expected fallback 7 for negative value, got %d", got)
	}

	t.Setenv("TEST_ENV_INT", "0")
	if got := envNonNegInt("TEST_ENV_INT", 7); got != 0 {
		t.Errorf("expected 0 from envNonNegInt, got %d", got)
	}
}

func TestCameraConfig_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		cfg      CameraConfig
		expected bool
	}{
		{"nothing configured", CameraConfig{}, false},
		{"url", CameraConfig{URL: "http://cam/snapshot.jpg"}, true},
		{"dir", CameraConfig{Dir: "/var/frames"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.expected {
				t.Errorf("Enabled() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoad_Web(t *testing.T) {
	t.Setenv("WEB_HOST", "")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://kiosk.school.example, ,https://admin.school.example")

	cfg := Load()

	if cfg.Web.Host != "0.0.0.0" {
		t.Errorf("expected default host '0.0.0.0', got '%s'", cfg.Web.Host)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://admin.school.example" {
		t.Errorf("unexpected allowed origins %v", cfg.Web.AllowedOrigins)
	}
}

package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_RejectsUnknownLevel(t *testing.T) {
	if err := Init("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestHelpers_WriteToGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	defer Set(zap.NewNop())

	Debug("hidden")
	Info("marked", zap.String("subject_id", "S1"))
	Warn("slow")
	Error("store failed")

	if logs.Len() != 3 {
		t.Fatalf("expected 3 entries above debug, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "marked" {
		t.Errorf("expected first message 'marked', got '%s'", entry.Message)
	}
	if entry.ContextMap()["subject_id"] != "S1" {
		t.Errorf("expected subject_id field S1, got %v", entry.ContextMap()["subject_id"])
	}
}

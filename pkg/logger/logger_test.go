package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetReplacesGlobalLogger(t *testing.T) {
	prev := Get()
	defer Set(prev)

	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core).Sugar())

	Get().Infow("event processed", "step", "classify_call")
	Get().Debugw("dropped below level")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "event processed" {
		t.Errorf("unexpected message %q", entries[0].Message)
	}
	if got := entries[0].ContextMap()["step"]; got != "classify_call" {
		t.Errorf("expected step=classify_call, got %v", got)
	}
}

package main

import (
	"testing"

	"github.com/angelmondragon/eventix-edge/pkg/config"
)

func TestLogFormatDefaultsDevToConsole(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	if got := logFormat(config.AppConfig{Env: "dev"}); got != "console" {
		t.Fatalf("expected console in dev, got %q", got)
	}
	if got := logFormat(config.AppConfig{Env: "prod"}); got != "" {
		t.Fatalf("expected default format in prod, got %q", got)
	}

	t.Setenv("LOG_FORMAT", "json")
	if got := logFormat(config.AppConfig{Env: "dev"}); got != "" {
		t.Fatalf("LOG_FORMAT must win, got %q", got)
	}
}

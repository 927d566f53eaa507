package main

import (
	"testing"

	"github.com/partylights/partylights-go/internal/config"
)

func TestNewLoggerAcceptsEveryLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		if log := newLogger(level); log == nil {
			t.Errorf("newLogger(%q) returned nil", level)
		}
	}
}

func TestOpsPortDefaultsWhenUnset(t *testing.T) {
	cfg := &config.Config{}
	if got := opsPort(cfg); got != 8090 {
		t.Errorf("opsPort() = %d, want default 8090", got)
	}

	cfg.Network.Ops.Port = 9100
	if got := opsPort(cfg); got != 9100 {
		t.Errorf("opsPort() = %d, want configured 9100", got)
	}
}

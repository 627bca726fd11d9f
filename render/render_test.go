package render

import (
	"context"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.defaults()
	if cfg.NavigationTimeout != 30*time.Second {
		t.Errorf("navigation timeout = %v", cfg.NavigationTimeout)
	}
	if cfg.CaptureTimeout != 15*time.Second {
		t.Errorf("capture timeout = %v", cfg.CaptureTimeout)
	}
	if cfg.ViewportWidth != 1440 || cfg.ViewportHeight != 900 {
		t.Errorf("viewport = %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
}

func TestCaptureBeforeStart(t *testing.T) {
	b := New(Config{})
	if _, err := b.CaptureRegion(context.Background(), "https://example.com", "/html/body"); err == nil {
		t.Fatal("expected error before Start")
	}
}

func TestStartAfterClose(t *testing.T) {
	b := New(Config{})
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err == nil {
		t.Fatal("expected error starting a closed browser")
	}
}

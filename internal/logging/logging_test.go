package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{" error ", zerolog.ErrorLevel, false},
		{"trace", zerolog.NoLevel, true},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostmatch.log")

	logger, closer, err := New(Options{Level: "info", File: path, Service: "test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Info().Str("k", "v").Msg("hello")
	logger.Debug().Msg("filtered")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) || !strings.Contains(string(data), `"service":"test"`) {
		t.Errorf("log file missing entry: %s", data)
	}
	if strings.Contains(string(data), "filtered") {
		t.Errorf("debug entry written at info level: %s", data)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewCustomOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Info().Msg("quiet")
	logger.Warn().Msg("loud")

	if strings.Contains(buf.String(), "quiet") {
		t.Errorf("info line should be filtered: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"message":"loud"`) {
		t.Errorf("warn line missing: %s", buf.String())
	}
}

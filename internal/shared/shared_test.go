package shared

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
)

func TestGenerateState(t *testing.T) {
	seen := make(map[string]bool)
	for range 20 {
		s := GenerateState()
		if len(s) < 32 {
			t.Errorf("state too short: %q", s)
		}
		if strings.ContainsAny(s, "+/=") {
			t.Errorf("state is not URL safe: %q", s)
		}
		if seen[s] {
			t.Fatalf("duplicate state %q", s)
		}
		seen[s] = true
	}
}

func TestGenerateID(t *testing.T) {
	if a, b := GenerateID(), GenerateID(); a == b || len(a) != 36 {
		t.Errorf("expected distinct uuids, got %q and %q", a, b)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    log.Level
		wantErr bool
	}{
		{level: "", want: log.InfoLevel},
		{level: "debug", want: log.DebugLevel},
		{level: "warn", want: log.WarnLevel},
		{level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := ParseLogLevel(tt.level)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, %v", tt.level, got, err)
			}
		})
	}
}

func TestNewFileLogger(t *testing.T) {
	t.Run("Writes To Rotating File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "soundlink.log")
		logger, closer, err := NewFileLogger(LogConfig{File: path, Level: "debug", MaxSizeMB: 1})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		logger.Debug("device flow started", "provider", "tidal")
		if err := closer.Close(); err != nil {
			t.Fatalf("failed to close log file: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "provider=tidal") {
			t.Errorf("expected logfmt entry, got %q", string(data))
		}
	})

	t.Run("Missing Path", func(t *testing.T) {
		if _, _, err := NewFileLogger(LogConfig{}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestOpenBrowser(t *testing.T) {
	var started []string
	origStart, origRuntime := startCmd, getRuntime
	startCmd = func(cmd *exec.Cmd) error {
		started = cmd.Args
		return nil
	}
	t.Cleanup(func() { startCmd, getRuntime = origStart, origRuntime })

	tests := []struct {
		name    string
		runtime string
		browser string
		url     string
		want    []string
		wantErr error
	}{
		{name: "Linux", runtime: "linux", url: "https://link.example.com/device", want: []string{"xdg-open", "https://link.example.com/device"}},
		{name: "Darwin", runtime: "darwin", url: "http://127.0.0.1:8080/login", want: []string{"open", "http://127.0.0.1:8080/login"}},
		{name: "Browser Env", runtime: "linux", browser: "firefox --new-tab", url: "https://example.com", want: []string{"firefox", "--new-tab", "https://example.com"}},
		{name: "Rejects File Scheme", runtime: "linux", url: "file:///etc/passwd", wantErr: ErrInvalidArgument},
		{name: "Rejects Missing Host", runtime: "linux", url: "https://", wantErr: ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			started = nil
			getRuntime = func() string { return tt.runtime }
			t.Setenv("BROWSER", tt.browser)

			err := OpenBrowser(tt.url)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				if started != nil {
					t.Errorf("expected nothing started, got %v", started)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if diff := cmp.Diff(tt.want, started); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("Unsupported Platform", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		t.Setenv("BROWSER", "")
		if err := OpenBrowser("https://example.com"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})
}

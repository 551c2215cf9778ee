package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/soundlink/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Backend.URL != "http://localhost:3001/api" {
			t.Errorf("expected default backend url, got %s", config.Backend.URL)
		}
		if config.Init.Model != "M1" || config.Init.RetryDelay != 5*time.Second || config.Init.Timeout != 0 {
			t.Errorf("unexpected init defaults: %+v", config.Init)
		}
		if config.Device.MinInterval != 5 {
			t.Errorf("expected min interval 5, got %d", config.Device.MinInterval)
		}
		if len(config.Providers) != 2 || config.Providers[0].ID != "tidal" {
			t.Errorf("unexpected default providers: %+v", config.Providers)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		path := writeConfig(t, `[backend]
url = "https://onboarding.example.com/api"

[init]
timeout = "90s"

[[providers]]
id = "deezer"
kind = "device"
client_id = "cid"
device_auth_url = "https://connect.example.com/device"
token_url = "https://connect.example.com/token"
scopes = ["r_usr"]
`)

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if config.Backend.URL != "https://onboarding.example.com/api" {
			t.Errorf("expected backend url override, got %s", config.Backend.URL)
		}
		if config.Init.Timeout != 90*time.Second {
			t.Errorf("expected 90s timeout, got %v", config.Init.Timeout)
		}
		if config.Init.Model != "M1" {
			t.Errorf("expected default model to survive, got %q", config.Init.Model)
		}

		p, ok := config.Provider("deezer")
		if !ok || !p.DirectOAuth() {
			t.Fatalf("expected deezer to be a direct OAuth provider, got %+v", p)
		}
		oc := p.OAuth2Config()
		if oc.Endpoint.DeviceAuthURL != "https://connect.example.com/device" || len(oc.Scopes) != 1 {
			t.Errorf("unexpected oauth2 config: %+v", oc)
		}
		if _, ok := config.Provider("tidal"); ok {
			t.Error("declared providers should replace the defaults")
		}
	})

	t.Run("Environment Overrides", func(t *testing.T) {
		path := writeConfig(t, "[backend]\nurl = \"http://file\"\n")
		t.Setenv("SOUNDLINK_BACKEND_URL", "http://env")
		t.Setenv("SOUNDLINK_BACKEND_REQUESTS_PER_SECOND", "2.5")
		t.Setenv("SOUNDLINK_INIT_RETRY_DELAY", "1s")
		t.Setenv("SOUNDLINK_USER_EMAIL", "neo@example.com")

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if config.Backend.URL != "http://env" || config.Backend.RequestsPerSecond != 2.5 {
			t.Errorf("expected env overrides, got %+v", config.Backend)
		}
		if config.Init.RetryDelay != time.Second {
			t.Errorf("expected retry delay 1s, got %v", config.Init.RetryDelay)
		}
		if config.User.Email != "neo@example.com" {
			t.Errorf("expected user email override, got %q", config.User.Email)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "Unknown Kind", body: "[[providers]]\nid = \"x\"\nkind = \"carrier-pigeon\"\n"},
			{name: "Duplicate Provider", body: "[[providers]]\nid = \"x\"\nkind = \"device\"\n[[providers]]\nid = \"x\"\nkind = \"direct\"\n"},
			{name: "Negative Rate", body: "[backend]\nrequests_per_second = -1.0\n"},
			{name: "Malformed", body: "[backend\n"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := LoadConfig(writeConfig(t, tt.body)); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("Spotify Credentials", func(t *testing.T) {
		s := SpotifyConfig{ClientID: "id"}
		if s.Configured() {
			t.Error("expected credentials without a secret to be unconfigured")
		}
		if s.ClientSecret = "secret"; !s.Configured() {
			t.Error("expected id and secret to be configured")
		}
	})
}

func TestProviderConfig(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		want   bool
	}{
		{name: "Backend Device", config: ProviderConfig{ID: "tidal", Kind: models.KindDevice}, want: false},
		{name: "Direct Kind", config: ProviderConfig{ID: "spotify", Kind: models.KindDirect, ClientID: "c", DeviceAuthURL: "d", TokenURL: "t"}, want: false},
		{name: "Missing Token URL", config: ProviderConfig{ID: "deezer", Kind: models.KindDevice, ClientID: "c", DeviceAuthURL: "d"}, want: false},
		{name: "Full", config: ProviderConfig{ID: "deezer", Kind: models.KindDevice, ClientID: "c", DeviceAuthURL: "d", TokenURL: "t"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.DirectOAuth(); got != tt.want {
				t.Errorf("DirectOAuth() = %v, want %v", got, tt.want)
			}
		})
	}
}

package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestDeviceGrant(t *testing.T) {
	t.Run("Normalize applies defaults", func(t *testing.T) {
		g := DeviceGrant{DeviceCode: "dc", UserCode: "ABCD-EFGH", VerificationURI: "link.example.com"}.Normalize()
		if g.ExpiresIn != DefaultExpiresIn {
			t.Errorf("expected expires_in %d, got %d", DefaultExpiresIn, g.ExpiresIn)
		}
		if g.Interval != DefaultInterval {
			t.Errorf("expected interval %d, got %d", DefaultInterval, g.Interval)
		}
	})

	t.Run("Normalize keeps provider values", func(t *testing.T) {
		g := DeviceGrant{ExpiresIn: 10, Interval: 1}.Normalize()
		if g.ExpiresIn != 10 || g.Interval != 1 {
			t.Errorf("expected 10/1, got %d/%d", g.ExpiresIn, g.Interval)
		}
	})

	t.Run("VerificationURL", func(t *testing.T) {
		tests := []struct {
			name  string
			grant DeviceGrant
			want  string
		}{
			{name: "bare host", grant: DeviceGrant{VerificationURI: "link.tidal.com"}, want: "https://link.tidal.com"},
			{name: "complete preferred", grant: DeviceGrant{VerificationURI: "https://a.io", VerificationURIComplete: "https://a.io?c=X"}, want: "https://a.io?c=X"},
			{name: "http kept", grant: DeviceGrant{VerificationURI: "http://localhost/device"}, want: "http://localhost/device"},
			{name: "empty", grant: DeviceGrant{}, want: ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.grant.VerificationURL(); got != tt.want {
					t.Errorf("VerificationURL() = %q, want %q", got, tt.want)
				}
			})
		}
	})

	t.Run("Validate", func(t *testing.T) {
		if err := (DeviceGrant{}).Validate(); err == nil {
			t.Error("expected error for empty grant")
		}
		g := DeviceGrant{DeviceCode: "dc", UserCode: "uc", VerificationURI: "https://v"}
		if err := g.Validate(); err != nil {
			t.Errorf("expected valid grant, got %v", err)
		}
	})
}

func TestPollResultFromCode(t *testing.T) {
	tests := []struct {
		code   string
		want   PollKind
		wantOK bool
	}{
		{code: "authorization_pending", want: PollPending, wantOK: true},
		{code: "slow_down", want: PollSlowDown, wantOK: true},
		{code: "access_denied", want: PollDenied, wantOK: true},
		{code: "expired_token", want: PollExpired, wantOK: true},
		{code: "invalid_grant", wantOK: false},
		{code: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := PollResultFromCode(tt.code)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Kind != tt.want {
				t.Errorf("kind = %v, want %v", got.Kind, tt.want)
			}
		})
	}

	t.Run("Terminal", func(t *testing.T) {
		if Pending().Terminal() || SlowDown().Terminal() {
			t.Error("pending and slow_down must not be terminal")
		}
		if !Denied().Terminal() || !Expired().Terminal() || !Succeeded(nil).Terminal() {
			t.Error("denied, expired and success must be terminal")
		}
	})
}

func TestInitResultClassify(t *testing.T) {
	tests := []struct {
		name   string
		result InitResult
		want   InitClass
	}{
		{name: "trained with items", result: InitResult{Success: true, Status: "trained", ItemCount: 42}, want: InitTrained},
		{name: "trained without items", result: InitResult{Success: true, Status: "trained"}, want: InitFallback},
		{name: "base model copied", result: InitResult{Success: true, Status: "base_model_copied", ItemCount: 3}, want: InitFallback},
		{name: "unsuccessful", result: InitResult{Success: false, Status: "trained", ItemCount: 42}, want: InitFailed},
		{name: "unknown status", result: InitResult{Success: true, Status: "queued"}, want: InitFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Classify(); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLinkRecord(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		r := NewLinkRecord(1, "session", "tidal", KindDevice)
		if err := r.Validate(); err != nil {
			t.Fatalf("expected valid record, got %v", err)
		}

		r.SetSuccess(true)
		if err := r.Validate(); err == nil {
			t.Error("expected error for successful record that is not completed")
		}

		r.SetStatus(EntryCompleted)
		if err := r.Validate(); err != nil {
			t.Errorf("expected valid record, got %v", err)
		}

		if err := NewLinkRecord(1, "", "tidal", KindDevice).Validate(); err == nil {
			t.Error("expected error for missing session id")
		}
	})

	t.Run("SetAccount", func(t *testing.T) {
		expiry := time.Now().Add(time.Hour)
		r := NewLinkRecord(1, "session", "tidal", KindDevice)
		r.SetAccount(&TokenBundle{
			Token:   &oauth2.Token{AccessToken: "at", Expiry: expiry},
			Account: Account{UserID: "42", Username: "listener"},
		})

		if r.AccountID() != "42" || r.Username() != "listener" {
			t.Errorf("unexpected account %q/%q", r.AccountID(), r.Username())
		}
		if r.ExpiresAt() == nil || !r.ExpiresAt().Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, r.ExpiresAt())
		}
	})

	t.Run("MarshalJSON", func(t *testing.T) {
		r := NewLinkRecord(3, "session", "tidal", KindDevice)
		r.SetID("rec-1")
		r.SetStatus(EntrySkipped)
		r.SetReason(ReasonDenied)

		data, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{`"id":"rec-1"`, `"providerId":"tidal"`, `"status":"skipped"`, `"reason":"denied"`, `"success":false`} {
			if !strings.Contains(string(data), want) {
				t.Errorf("expected %s in %s", want, data)
			}
		}
		if strings.Contains(string(data), "expiresAt") {
			t.Errorf("expected expiresAt to be omitted, got %s", data)
		}
	})
}

func TestInitRecordValidate(t *testing.T) {
	r := NewInitRecord(1, Identity{SessionID: "s", UserID: "u", Email: "e@example.com"})
	if err := r.Validate(); err == nil {
		t.Error("expected error without class and attempts")
	}

	r.SetClass(InitFallback)
	r.SetAttempts(2)
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid record, got %v", err)
	}

	r.SetAttempts(3)
	if err := r.Validate(); err == nil {
		t.Error("expected error for more than two attempts")
	}
}

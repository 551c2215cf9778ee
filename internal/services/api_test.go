package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/soundlink/internal/shared"
	tu "github.com/desertthunder/soundlink/internal/testing"
	"github.com/google/go-cmp/cmp"
)

func TestNewAPIService(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		client  *http.Client
		wantURL string
	}{
		{name: "Defaults", wantURL: DefaultBackendURL},
		{name: "Trailing Slash", baseURL: "https://api.example.com/api/", client: &http.Client{}, wantURL: "https://api.example.com/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewAPIService(tt.baseURL, tt.client)
			if srv.baseURL != tt.wantURL {
				t.Errorf("expected base URL %q, got %q", tt.wantURL, srv.baseURL)
			}
			if tt.client == nil && srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient")
			}
			if tt.client != nil && srv.httpClient != tt.client {
				t.Error("expected the given client")
			}
		})
	}
}

func TestAPIServicePostJSON(t *testing.T) {
	var got struct {
		method, path, contentType, auth, agent, body string
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got.method, got.path, got.body = r.Method, r.URL.Path, string(data)
		got.contentType = r.Header.Get("Content-Type")
		got.auth = r.Header.Get("Authorization")
		got.agent = r.Header.Get("User-Agent")
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	srv := NewAPIService(server.URL+"/api/", nil)
	resp, err := srv.PostJSON(context.Background(), "/tidal/link", map[string]string{"visitorId": "sess-1"}, WithBearer("jwt"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !resp.OK() || !resp.JSON() {
		t.Errorf("expected an OK JSON response, got %d %q", resp.StatusCode, resp.Body)
	}

	if got.method != http.MethodPost || got.path != "/api/tidal/link" {
		t.Errorf("unexpected request %s %s", got.method, got.path)
	}
	if got.contentType != "application/json" || got.auth != "Bearer jwt" || got.agent != userAgent {
		t.Errorf("unexpected headers: %+v", got)
	}
	if got.body != `{"visitorId":"sess-1"}` {
		t.Errorf("unexpected body %s", got.body)
	}

	t.Run("Empty Bearer Adds Nothing", func(t *testing.T) {
		if _, err := srv.PostJSON(context.Background(), "/x", nil, WithBearer("")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.auth != "" {
			t.Errorf("expected no Authorization header, got %q", got.auth)
		}
	})

	t.Run("Unencodable Payload", func(t *testing.T) {
		if _, err := srv.PostJSON(context.Background(), "/x", map[string]any{"ch": make(chan int)}); err == nil {
			t.Error("expected encode error")
		}
	})
}

func TestAPIServiceDo(t *testing.T) {
	tests := []struct {
		name     string
		respond  func(*http.Request) (*http.Response, error)
		wantErr  string
		wantJSON bool
	}{
		{
			name:     "JSON Body",
			respond:  func(*http.Request) (*http.Response, error) { return tu.Respond(200, `{"ok":1}`), nil },
			wantJSON: true,
		},
		{
			name:    "HTML Body",
			respond: func(*http.Request) (*http.Response, error) { return tu.Respond(502, "<html>bad gateway</html>"), nil },
		},
		{
			name:    "Empty Body",
			respond: func(*http.Request) (*http.Response, error) { return tu.Respond(204, ""), nil },
		},
		{
			name:    "Transport Failure",
			respond: func(*http.Request) (*http.Response, error) { return nil, tu.ErrInjected },
			wantErr: "request failed",
		},
		{
			name:    "Body Read Failure",
			respond: func(*http.Request) (*http.Response, error) { return tu.BrokenBody(), nil },
			wantErr: "failed to read response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &tu.Transport{Respond: tt.respond}
			srv := NewAPIService("https://api.example.com", transport.Client())

			resp, err := srv.Get(context.Background(), "/health", WithHeader("X-Trace", "t-1"))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.JSON() != tt.wantJSON {
				t.Errorf("expected JSON() = %v", tt.wantJSON)
			}

			reqs := transport.Requests()
			if len(reqs) != 1 {
				t.Fatalf("expected 1 request, got %d", len(reqs))
			}
			if h := reqs[0].Header; h.Get("X-Trace") != "t-1" || h.Get("Accept") != "application/json" {
				t.Errorf("unexpected headers %v", h)
			}
		})
	}

	t.Run("Invalid URL", func(t *testing.T) {
		srv := NewAPIService("://bad", nil)
		if _, err := srv.Get(context.Background(), "/x"); err == nil || !strings.Contains(err.Error(), "failed to create request") {
			t.Errorf("expected request creation error, got %v", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		transport := &tu.Transport{Respond: func(r *http.Request) (*http.Response, error) { return nil, r.Context().Err() }}
		srv := NewAPIService("https://api.example.com", transport.Client())
		if _, err := srv.Get(ctx, "/x"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestAPIResponse(t *testing.T) {
	t.Run("Decode", func(t *testing.T) {
		resp := &APIResponse{StatusCode: 200, Body: []byte(`{"userId":"u-1","username":"neo"}`)}
		var got account
		if err := resp.Decode(&got); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if diff := cmp.Diff(account{UserID: "u-1", Username: "neo"}, got); diff != "" {
			t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
		}

		if err := (&APIResponse{Body: []byte("nope")}).Decode(&got); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("Err", func(t *testing.T) {
		tests := []struct {
			name string
			resp APIResponse
			want string
		}{
			{name: "Error Field", resp: APIResponse{StatusCode: 503, Body: []byte(`{"error":"down"}`)}, want: "sync returned status 503: down"},
			{name: "Message Field", resp: APIResponse{StatusCode: 500, Body: []byte(`{"message":"boom"}`)}, want: "sync returned status 500: boom"},
			{name: "No Message", resp: APIResponse{StatusCode: 502, Body: []byte(`<html></html>`)}, want: "sync returned status 502"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.resp.Err("sync")
				if !errors.Is(err, shared.ErrAPIRequest) {
					t.Errorf("expected ErrAPIRequest, got %v", err)
				}
				if !strings.HasSuffix(err.Error(), tt.want) {
					t.Errorf("expected %q suffix, got %q", tt.want, err.Error())
				}
			})
		}
	})
}

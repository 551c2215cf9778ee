package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/soundlink/internal/shared"
	"golang.org/x/oauth2"
)

const linkedPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>soundlink</title>
<style>
body { font-family: system-ui, sans-serif; display: grid; place-items: center; height: 100vh; margin: 0; background: #111; color: #eee; }
main { text-align: center; }
h1 { color: #04B575; font-weight: 600; }
</style>
</head>
<body>
<main>
<h1>Account linked</h1>
<p>Return to your terminal to continue onboarding.</p>
</main>
</body>
</html>
`

// OAuthResult is the outcome of one authorization code callback.
type OAuthResult struct {
	Token *oauth2.Token
	Err   error
}

// OAuthHandler serves the authorization code callback.
//
// The first request is checked against state, its code is exchanged, and the
// outcome is published once on [OAuthHandler.Result]. Later requests get 400.
type OAuthHandler struct {
	config   *oauth2.Config
	state    string
	verifier string
	results  chan OAuthResult
	done     atomic.Bool
	once     sync.Once
}

// NewOAuthHandler creates a callback handler expecting state. A non-empty
// verifier is sent with the exchange as the PKCE code_verifier.
func NewOAuthHandler(config *oauth2.Config, state, verifier string) *OAuthHandler {
	return &OAuthHandler{
		config:   config,
		state:    state,
		verifier: verifier,
		results:  make(chan OAuthResult, 1),
	}
}

func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.done.CompareAndSwap(false, true) {
		http.Error(w, "callback already handled", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	switch {
	case q.Get("state") != h.state:
		h.fail(w, http.StatusBadRequest, fmt.Errorf("%w: state mismatch", shared.ErrAuthFailed))
		return
	case q.Get("code") == "":
		h.fail(w, http.StatusBadRequest, fmt.Errorf("%w: %s %s", shared.ErrDenied, q.Get("error"), q.Get("error_description")))
		return
	}

	var opts []oauth2.AuthCodeOption
	if h.verifier != "" {
		opts = append(opts, oauth2.VerifierOption(h.verifier))
	}
	token, err := h.config.Exchange(r.Context(), q.Get("code"), opts...)
	if err != nil {
		h.fail(w, http.StatusBadGateway, fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err))
		return
	}

	h.publish(OAuthResult{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, linkedPage)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, status int, err error) {
	h.publish(OAuthResult{Err: err})
	http.Error(w, "authorization failed", status)
}

func (h *OAuthHandler) publish(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result delivers exactly one [OAuthResult] and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

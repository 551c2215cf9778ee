package models

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultExpiresIn is applied when a provider omits expires_in.
	DefaultExpiresIn = 300
	// DefaultInterval is applied when a provider omits interval (RFC 8628 §3.2).
	DefaultInterval = 5
)

// DeviceGrant is a device authorization response (RFC 8628 §3.2).
//
// Issued once per flow attempt and never modified afterwards.
type DeviceGrant struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// Normalize returns a copy of the grant with defaults applied for missing lifetimes.
func (g DeviceGrant) Normalize() DeviceGrant {
	if g.ExpiresIn <= 0 {
		g.ExpiresIn = DefaultExpiresIn
	}
	if g.Interval <= 0 {
		g.Interval = DefaultInterval
	}
	return g
}

// Validate reports whether the grant carries the fields needed to run a flow.
func (g DeviceGrant) Validate() error {
	if g.DeviceCode == "" {
		return fmt.Errorf("device_code is required")
	}
	if g.UserCode == "" {
		return fmt.Errorf("user_code is required")
	}
	if g.VerificationURI == "" {
		return fmt.Errorf("verification_uri is required")
	}
	return nil
}

// VerificationURL returns the URL to show the user, preferring the complete form.
func (g DeviceGrant) VerificationURL() string {
	u := g.VerificationURIComplete
	if u == "" {
		u = g.VerificationURI
	}
	if u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u
}

// Account describes the provider-side account a token belongs to.
type Account struct {
	UserID      string `json:"userId,omitempty"`
	Username    string `json:"username,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// TokenBundle is the credential set produced by a successful link.
//
// The linking core hands it to the caller without looking inside.
type TokenBundle struct {
	Token   *oauth2.Token `json:"token"`
	Account Account       `json:"account"`
}

// Expiry returns the access token expiry, or the zero time when unknown.
func (b *TokenBundle) Expiry() time.Time {
	if b == nil || b.Token == nil {
		return time.Time{}
	}
	return b.Token.Expiry
}

// PollKind tags a [PollResult].
type PollKind int

const (
	PollPending PollKind = iota
	PollSlowDown
	PollDenied
	PollExpired
	PollSuccess
)

func (k PollKind) String() string {
	switch k {
	case PollPending:
		return "pending"
	case PollSlowDown:
		return "slow_down"
	case PollDenied:
		return "denied"
	case PollExpired:
		return "expired"
	case PollSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// RFC 8628 §3.5 token endpoint error codes.
const (
	CodeAuthorizationPending = "authorization_pending"
	CodeSlowDown             = "slow_down"
	CodeAccessDenied         = "access_denied"
	CodeExpiredToken         = "expired_token"
)

// PollResult is the value of one token endpoint poll.
//
// Token is set only when Kind is [PollSuccess].
type PollResult struct {
	Kind  PollKind
	Token *TokenBundle
}

func Pending() PollResult  { return PollResult{Kind: PollPending} }
func SlowDown() PollResult { return PollResult{Kind: PollSlowDown} }
func Denied() PollResult   { return PollResult{Kind: PollDenied} }
func Expired() PollResult  { return PollResult{Kind: PollExpired} }

// Succeeded wraps a token bundle in a successful poll result.
func Succeeded(token *TokenBundle) PollResult {
	return PollResult{Kind: PollSuccess, Token: token}
}

// PollResultFromCode maps an RFC 8628 error code to its poll result.
//
// The boolean is false for codes that are not part of the polling protocol.
func PollResultFromCode(code string) (PollResult, bool) {
	switch code {
	case CodeAuthorizationPending:
		return Pending(), true
	case CodeSlowDown:
		return SlowDown(), true
	case CodeAccessDenied:
		return Denied(), true
	case CodeExpiredToken:
		return Expired(), true
	default:
		return PollResult{}, false
	}
}

// Terminal reports whether the result ends the flow.
func (r PollResult) Terminal() bool {
	return r.Kind == PollDenied || r.Kind == PollExpired || r.Kind == PollSuccess
}

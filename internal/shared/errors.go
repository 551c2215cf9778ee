package shared

import "fmt"

// Sentinel errors. Callers wrap them with %w and match with [errors.Is].
var (
	// Configuration
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Provider authorization
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Device flow terminal causes
	ErrGrantIssue    = fmt.Errorf("device grant could not be issued")
	ErrPollTransport = fmt.Errorf("token poll transport failure")
	ErrDenied        = fmt.Errorf("authorization denied")
	ErrExpired       = fmt.Errorf("device code expired")
	ErrCancelled     = fmt.Errorf("flow cancelled")

	// Onboarding
	ErrLinkFailed      = fmt.Errorf("provider link failed")
	ErrSyncFailed      = fmt.Errorf("linked account sync failed")
	ErrInitBackend     = fmt.Errorf("initialization failed")
	ErrUnknownProvider = fmt.Errorf("unknown provider")

	// Backend and storage
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRecordNotFound     = fmt.Errorf("record not found")

	// Command input
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

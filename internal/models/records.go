package models

import (
	"encoding/json"
	"fmt"
	"time"
)

var (
	_ Model = (*LinkRecord)(nil)
	_ Model = (*InitRecord)(nil)
)

// LinkRecord is the persisted outcome of linking one provider in one session.
type LinkRecord struct {
	entity
	sessionID  string
	providerID string
	kind       ProviderKind
	status     EntryStatus
	success    bool
	reason     FailureReason
	accountID  string
	username   string
	expiresAt  *time.Time
}

// NewLinkRecord creates a [LinkRecord] for the given session and provider.
func NewLinkRecord(sequence int, sessionID, providerID string, kind ProviderKind) *LinkRecord {
	return &LinkRecord{
		entity:     newEntity(sequence),
		sessionID:  sessionID,
		providerID: providerID,
		kind:       kind,
		status:     EntryPending,
	}
}

func (l *LinkRecord) SessionID() string     { return l.sessionID }
func (l *LinkRecord) ProviderID() string    { return l.providerID }
func (l *LinkRecord) Kind() ProviderKind    { return l.kind }
func (l *LinkRecord) Status() EntryStatus   { return l.status }
func (l *LinkRecord) Success() bool         { return l.success }
func (l *LinkRecord) Reason() FailureReason { return l.reason }
func (l *LinkRecord) AccountID() string     { return l.accountID }
func (l *LinkRecord) Username() string      { return l.username }
func (l *LinkRecord) ExpiresAt() *time.Time { return l.expiresAt }

func (l *LinkRecord) SetStatus(s EntryStatus)   { l.status = s }
func (l *LinkRecord) SetSuccess(ok bool)        { l.success = ok }
func (l *LinkRecord) SetReason(r FailureReason) { l.reason = r }
func (l *LinkRecord) SetAccountID(id string)    { l.accountID = id }
func (l *LinkRecord) SetUsername(name string)   { l.username = name }
func (l *LinkRecord) SetExpiresAt(t *time.Time) { l.expiresAt = t }

// SetAccount copies account metadata and token expiry from a token bundle.
func (l *LinkRecord) SetAccount(b *TokenBundle) {
	if b == nil {
		return
	}
	l.accountID = b.Account.UserID
	l.username = b.Account.Username
	if exp := b.Expiry(); !exp.IsZero() {
		l.expiresAt = &exp
	}
}

// Validate checks required fields and the status value.
func (l *LinkRecord) Validate() error {
	if l.sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if l.providerID == "" {
		return fmt.Errorf("provider id is required")
	}
	switch l.status {
	case EntryPending, EntryActive, EntryCompleted, EntrySkipped:
	default:
		return fmt.Errorf("invalid link status: %q", l.status)
	}
	if l.success && l.status != EntryCompleted {
		return fmt.Errorf("successful link must be completed, got %q", l.status)
	}
	return nil
}

// InitRecord is the persisted outcome of an initialization run.
type InitRecord struct {
	entity
	sessionID    string
	userID       string
	class        InitClass
	attempts     int
	itemCount    int
	status       string
	errorMessage string
}

// NewInitRecord creates an [InitRecord] for the given identity.
func NewInitRecord(sequence int, identity Identity) *InitRecord {
	return &InitRecord{
		entity:    newEntity(sequence),
		sessionID: identity.SessionID,
		userID:    identity.UserID,
	}
}

func (r *InitRecord) SessionID() string    { return r.sessionID }
func (r *InitRecord) UserID() string       { return r.userID }
func (r *InitRecord) Class() InitClass     { return r.class }
func (r *InitRecord) Attempts() int        { return r.attempts }
func (r *InitRecord) ItemCount() int       { return r.itemCount }
func (r *InitRecord) Status() string       { return r.status }
func (r *InitRecord) ErrorMessage() string { return r.errorMessage }

func (r *InitRecord) SetClass(c InitClass)       { r.class = c }
func (r *InitRecord) SetAttempts(n int)          { r.attempts = n }
func (r *InitRecord) SetItemCount(n int)         { r.itemCount = n }
func (r *InitRecord) SetStatus(s string)         { r.status = s }
func (r *InitRecord) SetErrorMessage(msg string) { r.errorMessage = msg }

// Validate checks required fields and the attempt budget.
func (r *InitRecord) Validate() error {
	if r.userID == "" {
		return fmt.Errorf("user id is required")
	}
	switch r.class {
	case InitTrained, InitFallback, InitFailed:
	default:
		return fmt.Errorf("invalid init class: %q", r.class)
	}
	if r.attempts < 1 || r.attempts > 2 {
		return fmt.Errorf("attempts must be 1 or 2, got %d", r.attempts)
	}
	return nil
}

// MarshalJSON encodes the record for listing output.
func (l *LinkRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string        `json:"id"`
		Sequence   int           `json:"sequence"`
		SessionID  string        `json:"sessionId"`
		ProviderID string        `json:"providerId"`
		Kind       ProviderKind  `json:"kind"`
		Status     EntryStatus   `json:"status"`
		Success    bool          `json:"success"`
		Reason     FailureReason `json:"reason,omitempty"`
		AccountID  string        `json:"accountId,omitempty"`
		Username   string        `json:"username,omitempty"`
		ExpiresAt  *time.Time    `json:"expiresAt,omitempty"`
		CreatedAt  time.Time     `json:"createdAt"`
	}{
		ID:         l.id,
		Sequence:   l.sequence,
		SessionID:  l.sessionID,
		ProviderID: l.providerID,
		Kind:       l.kind,
		Status:     l.status,
		Success:    l.success,
		Reason:     l.reason,
		AccountID:  l.accountID,
		Username:   l.username,
		ExpiresAt:  l.expiresAt,
		CreatedAt:  l.createdAt,
	})
}

// MarshalJSON encodes the record for status output.
func (r *InitRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID           string    `json:"id"`
		SessionID    string    `json:"sessionId"`
		UserID       string    `json:"userId"`
		Class        InitClass `json:"class"`
		Attempts     int       `json:"attempts"`
		ItemCount    int       `json:"itemCount"`
		Status       string    `json:"status,omitempty"`
		ErrorMessage string    `json:"error,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
	}{
		ID:           r.id,
		SessionID:    r.sessionID,
		UserID:       r.userID,
		Class:        r.class,
		Attempts:     r.attempts,
		ItemCount:    r.itemCount,
		Status:       r.status,
		ErrorMessage: r.errorMessage,
		CreatedAt:    r.createdAt,
	})
}

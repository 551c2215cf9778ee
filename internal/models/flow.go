package models

import "fmt"

// FlowState is the lifecycle state of one device flow attempt.
type FlowState string

const (
	FlowIdle               FlowState = "idle"
	FlowIssuing            FlowState = "issuing"
	FlowAwaitingUserAction FlowState = "awaiting_user_action"
	FlowPolling            FlowState = "polling"
	FlowSucceeded          FlowState = "succeeded"
	FlowFailed             FlowState = "failed"
	FlowCancelled          FlowState = "cancelled"
)

// Terminal reports whether no further transitions can follow s.
func (s FlowState) Terminal() bool {
	return s == FlowSucceeded || s == FlowFailed || s == FlowCancelled
}

// FailureReason explains a failed flow or a skipped entry.
type FailureReason string

const (
	ReasonGrantIssue FailureReason = "grant_issue_error"
	ReasonDenied     FailureReason = "denied"
	ReasonExpired    FailureReason = "expired"
	ReasonCancelled  FailureReason = "cancelled"
	ReasonLinkFailed FailureReason = "link_failed"
	ReasonSyncFailed FailureReason = "sync_failed"
)

// ProviderKind selects how a provider is linked.
type ProviderKind string

const (
	// KindDevice providers are linked through the device authorization grant.
	KindDevice ProviderKind = "device"
	// KindDirect providers are linked by a single call that resolves on its own.
	KindDirect ProviderKind = "direct"
)

// Provider is one music service the user asked to link.
type Provider struct {
	ID   string       `json:"id" toml:"id"`
	Kind ProviderKind `json:"kind" toml:"kind"`
}

// Validate checks the provider id and kind.
func (p Provider) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("provider id is required")
	}
	switch p.Kind {
	case KindDevice, KindDirect:
		return nil
	default:
		return fmt.Errorf("provider %s: unknown kind %q", p.ID, p.Kind)
	}
}

// EntryStatus tracks one provider's progress through a linking sequence.
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryActive    EntryStatus = "active"
	EntryCompleted EntryStatus = "completed"
	EntrySkipped   EntryStatus = "skipped"
)

// Resolved reports whether the entry has finished.
func (s EntryStatus) Resolved() bool {
	return s == EntryCompleted || s == EntrySkipped
}

// SequenceEntry is one row of the ordered linking list.
type SequenceEntry struct {
	ProviderID string      `json:"providerId"`
	Status     EntryStatus `json:"status"`
}

// LinkResult is the resolution of a direct link call.
type LinkResult struct {
	Success  bool         `json:"success"`
	Identity *TokenBundle `json:"identity,omitempty"`
}

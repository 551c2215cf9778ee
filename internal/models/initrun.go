package models

import "fmt"

// Identity is the session-scoped user identity shared by every component in one run.
//
// It is never mutated after a run starts.
type Identity struct {
	SessionID string `json:"visitorId"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Model     string `json:"model,omitempty"`
}

// Validate checks the fields the initialization backend requires.
func (i Identity) Validate() error {
	if i.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if i.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

// InitStage is a step in the initialization progress program.
type InitStage string

const (
	StageAnalyzing  InitStage = "analyzing"
	StageTraining   InitStage = "training"
	StageEvaluating InitStage = "evaluating"
	StagePersisting InitStage = "persisting"
	StageDone       InitStage = "done"
	StageFailed     InitStage = "failed"
)

// InitRun is a snapshot of the initialization progress.
//
// Progress never decreases within an attempt and resets to 0 when attempt 2 starts.
type InitRun struct {
	Stage    InitStage `json:"stage"`
	Progress int       `json:"progress"`
	Attempt  int       `json:"attempt"`
}

// Backend status values reported by the initialization call.
const (
	InitStatusTrained         = "trained"
	InitStatusBaseModelCopied = "base_model_copied"
)

// InitResult is the structured response of one initialization call.
type InitResult struct {
	Success   bool           `json:"success"`
	ItemCount int            `json:"itemCount"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
}

// InitClass is the three-valued classification of an [InitResult].
type InitClass string

const (
	InitTrained  InitClass = "trained"
	InitFallback InitClass = "fallback"
	InitFailed   InitClass = "failed"
)

// Classify sorts a backend result into trained, fallback or failed.
//
// A trained status without processed items counts as a fallback.
func (r InitResult) Classify() InitClass {
	if !r.Success {
		return InitFailed
	}
	switch r.Status {
	case InitStatusTrained:
		if r.ItemCount > 0 {
			return InitTrained
		}
		return InitFallback
	case InitStatusBaseModelCopied:
		return InitFallback
	default:
		return InitFailed
	}
}

package tasks

import (
	"fmt"

	"github.com/desertthunder/soundlink/internal/deviceflow"
	"github.com/desertthunder/soundlink/internal/initgate"
	"github.com/desertthunder/soundlink/internal/linking"
	"github.com/desertthunder/soundlink/internal/models"
)

// ProgressUpdate represents a progress event during onboarding.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LinkProvider Phase = iota
	DeviceCode
	LinkResolved
	AllLinked
	Analyzing
	Training
	Evaluating
	Persisting
	InitDone
	InitFailed
)

func (p Phase) String() string {
	switch p {
	case LinkProvider:
		return "link_provider"
	case DeviceCode:
		return "device_code"
	case LinkResolved:
		return "link_resolved"
	case AllLinked:
		return "all_linked"
	case Analyzing:
		return "analyzing"
	case Training:
		return "training"
	case Evaluating:
		return "evaluating"
	case Persisting:
		return "persisting"
	case InitDone:
		return "init_done"
	case InitFailed:
		return "init_failed"
	default:
		return ""
	}
}

// Linking reports whether the phase belongs to provider linking.
func (p Phase) Linking() bool { return p <= AllLinked }

func linkProviderUpdate(step, total int, provider string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LinkProvider,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Linking %s...", step, total, provider),
	}
}

func requestingCodeUpdate(step, total int, provider string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LinkProvider,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Requesting device code from %s...", step, total, provider),
	}
}

func deviceCodeUpdate(step, total int, u deviceflow.Update) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DeviceCode,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Enter code %s at %s (%s left)", u.Grant.UserCode, u.Grant.VerificationURL(), Countdown(u.Remaining)),
		Data:    u,
	}
}

func linkResolvedUpdate(step, total int, r linking.Result) ProgressUpdate {
	var msg string
	switch {
	case r.Success:
		msg = fmt.Sprintf("[%d/%d] ✓ %s linked", step, total, r.ProviderID)
	case r.Status == models.EntryCompleted:
		msg = fmt.Sprintf("[%d/%d] ! %s linked, sync failed", step, total, r.ProviderID)
	default:
		msg = fmt.Sprintf("[%d/%d] ✗ %s skipped: %s", step, total, r.ProviderID, r.Reason)
	}
	return ProgressUpdate{
		Phase:   LinkResolved,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    r,
	}
}

func allLinkedUpdate(results []linking.Result) ProgressUpdate {
	linked := 0
	for _, r := range results {
		if r.Success {
			linked++
		}
	}
	return ProgressUpdate{
		Phase:   AllLinked,
		Step:    linked,
		Total:   len(results),
		Message: fmt.Sprintf("Linked %d of %d providers", linked, len(results)),
		Data:    results,
	}
}

func initRunUpdate(run models.InitRun) ProgressUpdate {
	u := ProgressUpdate{Step: run.Progress, Total: 100, Data: run}
	switch run.Stage {
	case models.StageAnalyzing:
		u.Phase = Analyzing
		u.Message = "Analyzing your library..."
	case models.StageTraining:
		u.Phase = Training
		u.Message = "Training your model..."
	case models.StageEvaluating:
		u.Phase = Evaluating
		u.Message = "Evaluating results..."
	case models.StagePersisting:
		u.Phase = Persisting
		u.Message = "Saving your model..."
	case models.StageDone:
		u.Phase = InitDone
		u.Message = "Initialization complete"
	default:
		u.Phase = InitFailed
		u.Message = "Initialization failed"
	}
	if run.Attempt > 1 {
		u.Message = fmt.Sprintf("%s (attempt %d)", u.Message, run.Attempt)
	}
	return u
}

func initDoneUpdate(o *initgate.Outcome) ProgressUpdate {
	msg := fmt.Sprintf("Model trained on %d items", o.Result.ItemCount)
	if o.Fallback() {
		msg = "Using the base model; personalization will catch up later"
	}
	return ProgressUpdate{
		Phase:   InitDone,
		Step:    100,
		Total:   100,
		Message: msg,
		Data:    o,
	}
}

func initFailedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   InitFailed,
		Total:   100,
		Message: fmt.Sprintf("✗ %v", err),
		Data:    err,
	}
}

// Countdown formats remaining seconds as m:ss.
func Countdown(seconds int) string {
	seconds = max(seconds, 0)
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

package linking

import (
	"github.com/desertthunder/soundlink/internal/deviceflow"
	"github.com/desertthunder/soundlink/internal/models"
)

// EventKind enumerates the events a [Sequencer] reports on its event stream.
type EventKind int

const (
	EntryResolved EventKind = iota
	AllLinked
)

func (k EventKind) String() string {
	switch k {
	case EntryResolved:
		return "entry_resolved"
	case AllLinked:
		return "all_linked"
	default:
		return ""
	}
}

// Result is the outcome of linking one provider.
//
// A completed entry with Success false was linked but its follow-up sync failed.
type Result struct {
	ProviderID string               `json:"providerId"`
	Kind       models.ProviderKind  `json:"kind"`
	Status     models.EntryStatus   `json:"status"`
	Success    bool                 `json:"success"`
	Reason     models.FailureReason `json:"reason,omitempty"`
	Token      *models.TokenBundle  `json:"-"`
	Err        error                `json:"-"`
}

// Error returns the failure message, or an empty string.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Event is delivered once per resolved entry, in input order, then once with
// the full result list.
type Event struct {
	Kind    EventKind
	Index   int
	Result  Result
	Results []Result
}

// Activity is an informational update for UI binding.
//
// It reports an entry becoming active and the device flow updates of the active
// entry (user code, countdown). Activity is dropped when the reader falls behind.
type Activity struct {
	Index      int
	ProviderID string
	Status     models.EntryStatus
	Flow       *deviceflow.Update
}

// Summary is the aggregate outcome of a sequence run.
type Summary struct {
	Results []Result `json:"results"`
}

// Linked returns the providers that completed successfully.
func (s *Summary) Linked() []string {
	var ids []string
	for _, r := range s.Results {
		if r.Success {
			ids = append(ids, r.ProviderID)
		}
	}
	return ids
}

// Failed returns the results that did not link successfully.
func (s *Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

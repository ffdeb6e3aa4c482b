// Package session holds the lifecycle of a single scan attempt.
//
// All phase and gating logic lives in Transition, a pure function from
// (State, Event) to (State, Command). The Controller executes the returned
// commands (validation, the scan request, persistence, checkout) and feeds
// their outcomes back in as events.
package session

import (
	"github.com/shieldscan/shieldscan/internal/gate"
	"github.com/shieldscan/shieldscan/internal/types"
)

// Phase is the lifecycle position of the current attempt.
type Phase int

const (
	Idle Phase = iota
	Validating
	Scanning
	Resulted
	Errored
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Scanning:
		return "scanning"
	case Resulted:
		return "resulted"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// InFlight reports whether an attempt is underway.
func (p Phase) InFlight() bool { return p == Validating || p == Scanning }

// GenericScanError is the only message shown for a failed scan.
const GenericScanError = "Failed to scan website."

// State is one session. Result is set only in Resulted and ErrorMessage
// only in Errored.
type State struct {
	Phase             Phase
	Target            string
	Result            *types.ScanResult
	ErrorMessage      string
	ValidationMessage string
	Expanded          *int
	PremiumUnlocked   bool
	// Generation identifies the current attempt. Scan outcomes carrying
	// another generation are stale.
	Generation uint64

	prior *snapshot
}

// snapshot is what a failed validation falls back to.
type snapshot struct {
	phase    Phase
	target   string
	result   *types.ScanResult
	errorMsg string
	expanded *int
}

// Report is the gated view of the current result, or false when there is
// none.
func (s State) Report() (gate.Report, bool) {
	if s.Result == nil {
		return gate.Report{}, false
	}
	return gate.Build(*s.Result, s.PremiumUnlocked), true
}

// ExpandedIndex returns the expanded finding, or -1.
func (s State) ExpandedIndex() int {
	if s.Expanded == nil {
		return -1
	}
	return *s.Expanded
}

// Event is an input to Transition.
type Event interface{ isEvent() }

type (
	// Submit starts a new attempt.
	Submit struct {
		Domain     string
		Authorized bool
	}
	// Validated carries the normalized target.
	Validated struct{ URL string }
	// ValidationFailed carries the inline message.
	ValidationFailed struct{ Message string }
	ScanSucceeded    struct {
		Generation uint64
		Result     types.ScanResult
	}
	// ScanFailed carries the cause for logging; it is never shown.
	ScanFailed struct {
		Generation uint64
		Err        error
	}
	// Reset is "scan another site".
	Reset          struct{}
	ToggleExpanded struct{ Index int }
	// RequestCheckout is the gated-finding affordance.
	RequestCheckout struct{}
	// PaymentReturned is the outcome of inspecting a return URL. Stored is
	// the persisted result, nil when none could be restored.
	PaymentReturned struct {
		Paid   bool
		Stored *types.ScanResult
	}
)

func (Submit) isEvent()           {}
func (Validated) isEvent()        {}
func (ValidationFailed) isEvent() {}
func (ScanSucceeded) isEvent()    {}
func (ScanFailed) isEvent()       {}
func (Reset) isEvent()            {}
func (ToggleExpanded) isEvent()   {}
func (RequestCheckout) isEvent()  {}
func (PaymentReturned) isEvent()  {}

// Command is a side effect requested by Transition. A nil Command means
// nothing to do.
type Command interface{ isCommand() }

type (
	ValidateCommand struct {
		Domain     string
		Authorized bool
	}
	ScanCommand struct {
		Generation uint64
		URL        string
	}
	PersistCommand  struct{ Result types.ScanResult }
	CheckoutCommand struct{ Site string }
)

func (ValidateCommand) isCommand() {}
func (ScanCommand) isCommand()     {}
func (PersistCommand) isCommand()  {}
func (CheckoutCommand) isCommand() {}

// Transition applies ev to s. It never mutates s.
func Transition(s State, ev Event) (State, Command) {
	switch ev := ev.(type) {
	case Submit:
		if s.Phase.InFlight() {
			return s, nil
		}
		s.prior = &snapshot{
			phase:    s.Phase,
			target:   s.Target,
			result:   s.Result,
			errorMsg: s.ErrorMessage,
			expanded: s.Expanded,
		}
		s.Phase = Validating
		s.Result = nil
		s.ErrorMessage = ""
		s.ValidationMessage = ""
		s.Expanded = nil
		return s, ValidateCommand{Domain: ev.Domain, Authorized: ev.Authorized}

	case Validated:
		if s.Phase != Validating {
			return s, nil
		}
		s.prior = nil
		s.Phase = Scanning
		s.Target = ev.URL
		s.Generation++
		return s, ScanCommand{Generation: s.Generation, URL: ev.URL}

	case ValidationFailed:
		if s.Phase != Validating {
			return s, nil
		}
		if p := s.prior; p != nil {
			s.Phase = p.phase
			s.Target = p.target
			s.Result = p.result
			s.ErrorMessage = p.errorMsg
			s.Expanded = p.expanded
		} else {
			s.Phase = Idle
		}
		s.prior = nil
		s.ValidationMessage = ev.Message
		return s, nil

	case ScanSucceeded:
		if s.Phase != Scanning || ev.Generation != s.Generation {
			return s, nil
		}
		r := ev.Result
		s.Phase = Resulted
		s.Result = &r
		s.ErrorMessage = ""
		return s, PersistCommand{Result: r}

	case ScanFailed:
		if s.Phase != Scanning || ev.Generation != s.Generation {
			return s, nil
		}
		s.Phase = Errored
		s.Result = nil
		s.ErrorMessage = GenericScanError
		return s, nil

	case Reset:
		unlocked := s.PremiumUnlocked
		gen := s.Generation + 1
		return State{Phase: Idle, PremiumUnlocked: unlocked, Generation: gen}, nil

	case ToggleExpanded:
		if s.Result == nil || ev.Index < 0 || ev.Index >= len(s.Result.Issues) {
			return s, nil
		}
		if gate.IsGated(ev.Index, s.PremiumUnlocked) {
			return s, nil
		}
		if s.Expanded != nil && *s.Expanded == ev.Index {
			s.Expanded = nil
			return s, nil
		}
		i := ev.Index
		s.Expanded = &i
		return s, nil

	case RequestCheckout:
		if s.Result == nil || s.PremiumUnlocked {
			return s, nil
		}
		return s, CheckoutCommand{Site: s.Result.URL}

	case PaymentReturned:
		if !ev.Paid {
			return s, nil
		}
		s.PremiumUnlocked = true
		if ev.Stored == nil || !ev.Stored.HasID() || s.Phase.InFlight() {
			return s, nil
		}
		r := *ev.Stored
		s.Phase = Resulted
		s.Target = r.URL
		s.Result = &r
		s.ErrorMessage = ""
		s.ValidationMessage = ""
		s.Expanded = nil
		return s, nil
	}
	return s, nil
}

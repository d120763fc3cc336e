package plugin

import "fmt"

// State is a plugin record's lifecycle state. States only move forward:
// Discovered -> DependenciesValidated -> Initialized -> CleanedUp, with
// Failed reachable from any state before CleanedUp. No state ever regresses.
type State string

const (
	StateDiscovered            State = "discovered"
	StateDependenciesValidated State = "dependencies_validated"
	StateInitialized           State = "initialized"
	StateFailed                State = "failed"
	StateCleanedUp             State = "cleaned_up"
)

var stateRank = map[State]int{
	StateDiscovered:            0,
	StateDependenciesValidated: 1,
	StateInitialized:           2,
	StateCleanedUp:             3,
}

// Record wraps a plugin's metadata and lifecycle state. The registry owns
// all records; callers only ever see copies.
type Record struct {
	Meta    Metadata
	State   State
	Reason  string // failure reason when State == StateFailed
	Dir     string // descriptor directory, empty for built-ins
	Builtin bool

	plugin Plugin
}

// advance moves the record forward to next. It panics on regression since a
// backwards transition is a registry bug, not a runtime condition.
func (r *Record) advance(next State) {
	if r.State == StateFailed {
		panic(fmt.Sprintf("plugin %s: cannot leave failed state", r.Meta.Name))
	}
	if stateRank[next] <= stateRank[r.State] && next != r.State {
		panic(fmt.Sprintf("plugin %s: illegal state transition %s -> %s", r.Meta.Name, r.State, next))
	}
	r.State = next
}

// fail marks the record failed with a reason. Allowed from any live state.
func (r *Record) fail(reason string) {
	if r.State == StateCleanedUp {
		return
	}
	r.State = StateFailed
	r.Reason = reason
}

// Diagnostic is the caller-facing report for a plugin that did not become
// usable. Failed plugins are reported, never silently dropped.
type Diagnostic struct {
	Name   string `json:"name"`
	Dir    string `json:"dir,omitempty"`
	State  State  `json:"state"`
	Reason string `json:"reason"`
}

package models

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of one tracked file.
type State int

const (
	StatePending State = iota
	StateUploading
	StateProcessing
	StateComplete
	StateError
)

var stateNames = [...]string{
	StatePending:    "pending",
	StateUploading:  "uploading",
	StateProcessing: "processing",
	StateComplete:   "complete",
	StateError:      "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState normalizes a textual state. Unknown values are rejected.
func ParseState(v string) (State, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for i, n := range stateNames {
		if n == v {
			return State(i), nil
		}
	}
	return StatePending, fmt.Errorf("unknown state %q", v)
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

// CanTransition reports whether moving from s to next is allowed.
// Re-asserting the current non-terminal state is allowed.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StatePending:
		return s == StatePending
	case StateUploading:
		return s == StatePending || s == StateUploading
	case StateProcessing:
		return s == StateUploading || s == StateProcessing
	case StateComplete:
		return s == StateProcessing
	case StateError:
		return true
	}
	return false
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// FileStatus is the tracked state of one accepted file or archive entry.
type FileStatus struct {
	Name     string  `json:"name" msgpack:"name"`
	Progress float64 `json:"progress" msgpack:"progress"`
	State    State   `json:"state" msgpack:"state"`
	Error    string  `json:"error,omitempty" msgpack:"error,omitempty"`
}

// BatchResult is the contract returned to the caller of one orchestration run.
type BatchResult struct {
	UploadedAssetIDs []string     `json:"uploadedAssetIds" msgpack:"uploadedAssetIds"`
	FileStatuses     []FileStatus `json:"fileStatuses" msgpack:"fileStatuses"`
	OverallProgress  float64      `json:"overallProgress" msgpack:"overallProgress"`
	Rejected         []string     `json:"rejected,omitempty" msgpack:"rejected,omitempty"`
	Notices          []string     `json:"notices,omitempty" msgpack:"notices,omitempty"`
	Summary          string       `json:"summary" msgpack:"summary"`
	Failure          string       `json:"failure,omitempty" msgpack:"failure,omitempty"`
}

// Succeeded counts files that reached StateComplete.
func (r *BatchResult) Succeeded() int {
	n := 0
	for _, s := range r.FileStatuses {
		if s.State == StateComplete {
			n++
		}
	}
	return n
}

// Failed counts files that ended in StateError.
func (r *BatchResult) Failed() int {
	n := 0
	for _, s := range r.FileStatuses {
		if s.State == StateError {
			n++
		}
	}
	return n
}

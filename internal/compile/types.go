package compile

import (
	"encoding/json"
	"time"
)

// EntryKind is the severity tag of a console entry. Only Error and Warning
// are classified; every other tag is dropped.
type EntryKind string

const (
	KindError   EntryKind = "Error"
	KindWarning EntryKind = "Warning"
)

// ConsoleEntry is one raw line from the editor console.
type ConsoleEntry struct {
	Kind       EntryKind
	Message    string
	File       string
	Line       string
	StackTrace string
}

// Diagnostic is a classified console entry as returned to callers.
// Every field except StackTrace is always present, possibly empty.
type Diagnostic struct {
	Message    string `json:"message"`
	File       string `json:"file"`
	Line       string `json:"line"`
	StackTrace string `json:"stackTrace,omitempty"`
}

// DiagnosticReport holds classified errors and warnings in transport order.
type DiagnosticReport struct {
	Errors   []Diagnostic
	Warnings []Diagnostic
}

// HasErrors reports whether any error was classified.
func (r DiagnosticReport) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings reports whether any warning was classified.
func (r DiagnosticReport) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// StatusLabel summarizes the editor's busy state.
type StatusLabel string

const (
	StatusCompiling StatusLabel = "compiling"
	StatusUpdating  StatusLabel = "updating"
	StatusIdle      StatusLabel = "idle"
)

// labelFor derives the single label that holds for the given flags.
func labelFor(compiling, updating bool) StatusLabel {
	switch {
	case compiling:
		return StatusCompiling
	case updating:
		return StatusUpdating
	default:
		return StatusIdle
	}
}

// EditorState is the subset of the editor state the monitor cares about.
type EditorState struct {
	IsCompiling bool
	IsUpdating  bool
}

// CompileStatus is one fresh snapshot of compilation state.
type CompileStatus struct {
	IsCompiling bool
	IsUpdating  bool
	Diagnostics DiagnosticReport
}

// Label returns the status label for this snapshot.
func (s CompileStatus) Label() StatusLabel {
	return labelFor(s.IsCompiling, s.IsUpdating)
}

// Busy reports whether the editor is still compiling or reloading.
func (s CompileStatus) Busy() bool {
	return s.IsCompiling || s.IsUpdating
}

type compileStatusJSON struct {
	IsCompiling  bool         `json:"isCompiling"`
	IsUpdating   bool         `json:"isUpdating"`
	HasErrors    bool         `json:"hasErrors"`
	HasWarnings  bool         `json:"hasWarnings"`
	ErrorCount   int          `json:"errorCount"`
	WarningCount int          `json:"warningCount"`
	Errors       []Diagnostic `json:"errors"`
	Warnings     []Diagnostic `json:"warnings"`
	Status       StatusLabel  `json:"status"`
}

// MarshalJSON renders the snapshot with its derived fields computed from
// the diagnostic lists.
func (s CompileStatus) MarshalJSON() ([]byte, error) {
	errs := s.Diagnostics.Errors
	if errs == nil {
		errs = []Diagnostic{}
	}
	warns := s.Diagnostics.Warnings
	if warns == nil {
		warns = []Diagnostic{}
	}

	return json.Marshal(compileStatusJSON{
		IsCompiling:  s.IsCompiling,
		IsUpdating:   s.IsUpdating,
		HasErrors:    s.Diagnostics.HasErrors(),
		HasWarnings:  s.Diagnostics.HasWarnings(),
		ErrorCount:   len(errs),
		WarningCount: len(warns),
		Errors:       errs,
		Warnings:     warns,
		Status:       s.Label(),
	})
}

// WaitResult is the outcome of a completed wait.
type WaitResult struct {
	WaitTime    time.Duration
	Polls       int
	FinalStatus CompileStatus
}

// MarshalJSON renders waitTime in seconds.
func (w WaitResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		WaitTime    float64       `json:"waitTime"`
		Polls       int           `json:"polls"`
		FinalStatus CompileStatus `json:"finalStatus"`
	}{
		WaitTime:    w.WaitTime.Seconds(),
		Polls:       w.Polls,
		FinalStatus: w.FinalStatus,
	})
}

// Outcome is what a pass-through command reports back.
type Outcome struct {
	Message string
	Data    interface{}
}

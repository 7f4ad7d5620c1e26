// Package domain holds the value types shared across the conversion
// pipeline: jobs, stages, status transitions, and the result/error
// envelopes returned to callers of the orchestrator.
package domain

import (
	"time"
)

// Status is a Job's lifecycle state. Transitions follow a strict graph:
// pending -> running -> {completed, failed, cancelled} -> cleaned; a
// pending job can also be cancelled directly.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusCleaned   Status = "cleaned"
)

// Terminal reports whether no further transition is possible except
// eventually to cleaned.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusCleaned:
		return true
	default:
		return false
	}
}

// StageName identifies one of the fixed pipeline stages. Order is
// significant and enforced by the orchestrator.
type StageName string

const (
	StageAnalyze     StageName = "analyze"
	StageCompile     StageName = "compile"
	StageConvert     StageName = "convert"
	StagePostprocess StageName = "postprocess"
	StageValidate    StageName = "validate"
)

// StageStatus is the execution state of a single Stage.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// Stage is one step of a Job's pipeline.
type Stage struct {
	Name        StageName
	Status      StageStatus
	StartedAt   *time.Time
	EndedAt     *time.Time
	Progress    int // 0-100, only meaningful while Status == running
	Error       *ConversionError
	Diagnostics map[string]string
}

// Options is the closed set of submission options. A duck-typed map is
// deliberately not used here: every accepted key is a named field.
type Options struct {
	SkipImages               bool
	MaxProcessingTimeSeconds int
	OutputFormat             string
}

// Job is the unit of work tracked by the registry and driven by the
// orchestrator. Job owns WorkingDir/OutputDir exclusively; the registry
// only ever hands out copies of this struct.
type Job struct {
	ID         string
	Filename   string
	WorkingDir string
	OutputDir  string
	Status     Status
	Stages     []Stage
	TimeoutSec int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Options Options

	Result *ConversionResult
	Error  *ConversionError
}

// StageByName returns a pointer to the Stage with the given name, or nil.
func (j *Job) StageByName(name StageName) *Stage {
	for i := range j.Stages {
		if j.Stages[i].Name == name {
			return &j.Stages[i]
		}
	}
	return nil
}

// ErrorKind enumerates the sum-type of conversion failures (spec §7).
// There is deliberately one flat enum here rather than an error class
// hierarchy.
type ErrorKind string

const (
	ErrCapacityExceeded    ErrorKind = "capacity_exceeded"
	ErrNotFound            ErrorKind = "not_found"
	ErrNotReady            ErrorKind = "not_ready"
	ErrUnsafeArchive       ErrorKind = "unsafe_archive"
	ErrNoMainSource        ErrorKind = "no_main_source"
	ErrCompilerFailure     ErrorKind = "compiler_failure"
	ErrConverterFailure    ErrorKind = "converter_failure"
	ErrPostProcessing      ErrorKind = "post_processing_failure"
	ErrTimeoutExceeded     ErrorKind = "timeout_exceeded"
	ErrCancelled           ErrorKind = "cancelled"
	ErrInternal            ErrorKind = "internal"
)

// ConversionError is the single error envelope returned for any failed
// Job or stage. CapturedStderr is bounded to 64KB by callers before it
// is stored here.
type ConversionError struct {
	Kind           ErrorKind
	Message        string
	Stage          StageName
	Suggestions    []string
	CapturedStderr string
}

func (e *ConversionError) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Kind) + ": " + e.Message
}

// ConversionResult is the successful output envelope for a completed Job.
type ConversionResult struct {
	HTMLPath          string
	AssetPaths        []string
	QualityScore      int
	Warnings          []string
	StageDiagnostics  map[StageName]map[string]string
}

// ProjectStructure is the ephemeral output of the Project Analyzer. It is
// never persisted; it only exists for the duration of the analyze stage.
type ProjectStructure struct {
	MainSourcePath  string
	SupportingFiles map[string][]string // category -> relative paths
	ClassFiles      []string
	BibFiles        []string
	GraphicsFiles   []string
	Packages        []string
	DocumentClass   string
	SearchDirs      []string
}

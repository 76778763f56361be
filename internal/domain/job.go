package domain

import "time"

// JobKind enumerates how a job's inputs were derived.
type JobKind string

const (
	JobKindInitial      JobKind = "initial"
	JobKindModification JobKind = "modification"
)

// JobStatus enumerates job lifecycle states. A job leaves pending exactly once.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// SimulationStatus tracks the simulation sub-state layered on a completed job.
type SimulationStatus string

const (
	SimulationIdle       SimulationStatus = "idle"
	SimulationGenerating SimulationStatus = "generating"
	SimulationCompleted  SimulationStatus = "completed"
	SimulationFailed     SimulationStatus = "failed"
)

// ImageRef points at stored bytes together with their media type. Drive
// locators carry no extension so the MIME type travels with the reference.
type ImageRef struct {
	Ref  string `json:"ref"`
	MIME string `json:"mime"`
}

// JobInputs is the immutable snapshot of everything a generation run needs.
type JobInputs struct {
	Template      ImageRef   `json:"template"`
	ReferenceIDs  []int64    `json:"referenceIds,omitempty"`
	References    []ImageRef `json:"references,omitempty"`
	ReferenceText []string   `json:"referenceText,omitempty"`
	Logo          *ImageRef  `json:"logo,omitempty"`
	UserImages    []ImageRef `json:"userImages,omitempty"`
	ProductName   string     `json:"productName,omitempty"`
	ProductText   string     `json:"productText,omitempty"`
	Parts         string     `json:"parts,omitempty"`
	Constraints   string     `json:"constraints,omitempty"`
	Concept       string     `json:"concept,omitempty"`
	Instructions  string     `json:"instructions,omitempty"`
	ChangeRequest string     `json:"changeRequest,omitempty"`
	Source        *ImageRef  `json:"source,omitempty"`
}

// Job is a single generation attempt and its outcome.
type Job struct {
	ID               string
	Kind             JobKind
	BaseProductID    int64
	ParentID         *string
	Inputs           JobInputs
	Status           JobStatus
	ArtifactRef      *string
	ArtifactMIME     string
	ErrorMessage     string
	SimulationStatus SimulationStatus
	SimulationRefs   []string
	SimulationError  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Terminal reports whether the job has left the pending state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

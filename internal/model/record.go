// Package model defines the data carried through an article run.
package model

import "slices"

// Stage names one step of the article pipeline.
type Stage string

const (
	StageDiscovery    Stage = "discovery"
	StageAcquisition  Stage = "acquisition"
	StageDistillation Stage = "distillation"
	StageSynthesis    Stage = "synthesis"
)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{
		StageDiscovery,
		StageAcquisition,
		StageDistillation,
		StageSynthesis,
	}
}

// Index returns the position of s in execution order, or -1 if unknown.
func (s Stage) Index() int {
	for i, st := range Stages() {
		if st == s {
			return i
		}
	}
	return -1
}

// StageStatus is the outcome of a single stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusDegraded StageStatus = "degraded" // finished with a soft diagnostic
	StageStatusFailed   StageStatus = "failed"
)

// StageResult holds the outcome of one stage.
type StageResult struct {
	Name       Stage          `json:"name" yaml:"name"`
	Status     StageStatus    `json:"status" yaml:"status"`
	Duration   int64          `json:"duration_ms" yaml:"duration_ms"`
	TokenUsage TokenUsage     `json:"token_usage" yaml:"token_usage"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Document is a fetched page body paired with the URL it came from.
type Document struct {
	Text      string  `json:"text" yaml:"text"`
	SourceURL string  `json:"source_url" yaml:"source_url"`
	Title     string  `json:"title,omitempty" yaml:"title,omitempty"`
	Score     float64 `json:"score" yaml:"score"`
}

// Record is the state of one article run. Each stage fills in its own
// fields and carries everything earlier stages wrote unchanged.
type Record struct {
	RunID             string        `json:"run_id" yaml:"run_id"`
	Query             string        `json:"query" yaml:"query"`
	CandidateURLs     []string      `json:"candidate_urls" yaml:"candidate_urls"`
	SelectedDocuments []Document    `json:"selected_documents" yaml:"selected_documents"`
	Brief             string        `json:"brief" yaml:"brief"`
	Article           string        `json:"article" yaml:"article"`
	Error             string        `json:"error,omitempty" yaml:"error,omitempty"`
	Stages            []StageResult `json:"stages,omitempty" yaml:"stages,omitempty"`
	Usage             TokenUsage    `json:"usage" yaml:"usage"`
}

// NewRecord starts a record for a single run.
func NewRecord(runID, query string) *Record {
	return &Record{RunID: runID, Query: query}
}

// Fail records a soft diagnostic. The first diagnostic of a run is kept;
// later ones are dropped here but remain on their StageResult.
func (r *Record) Fail(msg string) {
	if r.Error == "" {
		r.Error = msg
	}
}

// Sources lists the source URLs of the selected documents in rank order.
func (r *Record) Sources() []string {
	out := make([]string, 0, len(r.SelectedDocuments))
	for _, d := range r.SelectedDocuments {
		out = append(out, d.SourceURL)
	}
	return out
}

// LastStage returns the most recent stage that ran, or "" before discovery.
func (r *Record) LastStage() Stage {
	if len(r.Stages) == 0 {
		return ""
	}
	return r.Stages[len(r.Stages)-1].Name
}

// Clone returns a deep copy so observers and stages never share slices.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.CandidateURLs != nil {
		c.CandidateURLs = slices.Clone(r.CandidateURLs)
	}
	if r.SelectedDocuments != nil {
		c.SelectedDocuments = slices.Clone(r.SelectedDocuments)
	}
	if r.Stages != nil {
		c.Stages = make([]StageResult, len(r.Stages))
		for i, s := range r.Stages {
			c.Stages[i] = s
			if s.Metadata != nil {
				md := make(map[string]any, len(s.Metadata))
				for k, v := range s.Metadata {
					md[k] = v
				}
				c.Stages[i].Metadata = md
			}
		}
	}
	return &c
}

package model

import (
	"fmt"
	"slices"
)

// ContractError reports a record that breaks the hand-off rules between
// stages. It is always fatal for the run.
type ContractError struct {
	Stage  Stage
	Reason string
}

func (e *ContractError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("model: invalid initial record: %s", e.Reason)
	}
	return fmt.Sprintf("model: invalid record after %s: %s", e.Stage, e.Reason)
}

func violation(stage Stage, format string, args ...any) *ContractError {
	return &ContractError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the record's shape as it leaves the given stage. An empty
// stage validates a freshly created record. k bounds SelectedDocuments;
// zero disables the bound.
func (r *Record) Validate(after Stage, k int) error {
	if r == nil {
		return violation(after, "record is nil")
	}
	idx := after.Index()
	if idx < 0 && after != "" {
		return violation(after, "unknown stage")
	}
	if r.RunID == "" {
		return violation(after, "run id is empty")
	}

	if idx < StageDiscovery.Index() && len(r.CandidateURLs) > 0 {
		return violation(after, "candidate urls set before discovery")
	}
	if idx < StageAcquisition.Index() && len(r.SelectedDocuments) > 0 {
		return violation(after, "documents set before acquisition")
	}
	if idx < StageDistillation.Index() && r.Brief != "" {
		return violation(after, "brief set before distillation")
	}
	if idx < StageSynthesis.Index() && r.Article != "" {
		return violation(after, "article set before synthesis")
	}

	if k > 0 && len(r.SelectedDocuments) > k {
		return violation(after, "%d documents selected, limit is %d", len(r.SelectedDocuments), k)
	}
	for i, d := range r.SelectedDocuments {
		if d.SourceURL == "" {
			return violation(after, "document %d has no source url", i)
		}
	}

	if after == StageSynthesis && r.Article == "" {
		return violation(after, "article is empty")
	}
	return nil
}

// CheckCarried verifies that next kept every field prev held going into
// stage. Only the stage's own fields and a first soft error may change.
func CheckCarried(prev, next *Record, stage Stage) error {
	if prev == nil || next == nil {
		return violation(stage, "record is nil")
	}
	if next.RunID != prev.RunID {
		return violation(stage, "run id changed")
	}
	if next.Query != prev.Query {
		return violation(stage, "query changed")
	}
	idx := stage.Index()
	if idx > StageDiscovery.Index() && !slices.Equal(prev.CandidateURLs, next.CandidateURLs) {
		return violation(stage, "candidate urls changed")
	}
	if idx > StageAcquisition.Index() && !slices.Equal(prev.SelectedDocuments, next.SelectedDocuments) {
		return violation(stage, "selected documents changed")
	}
	if idx > StageDistillation.Index() && prev.Brief != next.Brief {
		return violation(stage, "brief changed")
	}
	if prev.Error != "" && next.Error != prev.Error {
		return violation(stage, "earlier error overwritten")
	}
	return nil
}

package pipeline

import "github.com/sells-group/research-writer/internal/model"

// Observer is notified after every completed stage with a copy of the
// record. Implementations must not block for long; the next stage waits.
type Observer interface {
	StageDone(stage model.Stage, rec *model.Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(stage model.Stage, rec *model.Record)

// StageDone implements Observer.
func (f ObserverFunc) StageDone(stage model.Stage, rec *model.Record) { f(stage, rec) }

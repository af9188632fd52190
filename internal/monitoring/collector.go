// Package monitoring exposes run metrics and raises alerts when recent
// article runs look unhealthy.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-writer/internal/model"
)

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
}

// Snapshot holds a point-in-time view of run health.
type Snapshot struct {
	Total       int     `json:"total"`
	Complete    int     `json:"complete"`
	Degraded    int     `json:"degraded"`
	Failed      int     `json:"failed"`
	Running     int     `json:"running"`
	FailRate    float64 `json:"fail_rate"`
	DegradeRate float64 `json:"degraded_rate"`
	CostUSD     float64 `json:"cost_usd"`
	AvgTokens   int     `json:"avg_tokens"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers snapshots from the run store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

const collectLimit = 10000

// Collect summarizes runs created within the lookback window. A complete
// run whose record carries a soft diagnostic counts as degraded.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, model.RunFilter{Limit: collectLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var tokens int
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Total++
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
			if r.Result != nil && r.Result.Error != "" {
				snap.Degraded++
			}
		case model.RunStatusFailed:
			snap.Failed++
		default:
			snap.Running++
		}
		if r.Result != nil {
			snap.CostUSD += r.Result.Usage.Cost
			tokens += r.Result.Usage.Total()
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if snap.Complete > 0 {
		snap.DegradeRate = float64(snap.Degraded) / float64(snap.Complete)
	}
	if snap.Total > 0 {
		snap.AvgTokens = tokens / snap.Total
	}
	return snap, nil
}

package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-writer/internal/model"
)

type mockRunLister struct {
	mock.Mock
}

func (m *mockRunLister) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	runs, _ := args.Get(0).([]model.Run)
	return runs, args.Error(1)
}

func finishedRun(status model.RunStatus, softErr string, cost float64, created time.Time) model.Run {
	rec := model.NewRecord("id", "q")
	rec.Error = softErr
	rec.Usage = model.TokenUsage{InputTokens: 800, OutputTokens: 200, Cost: cost}
	return model.Run{Status: status, Result: rec, CreatedAt: created}
}

func TestCollector_Collect(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.Run{
		finishedRun(model.RunStatusComplete, "", 0.10, now.Add(-time.Hour)),
		finishedRun(model.RunStatusComplete, "No high-quality search results found (score > 0.5)", 0.01, now.Add(-2*time.Hour)),
		finishedRun(model.RunStatusFailed, "", 0.02, now.Add(-3*time.Hour)),
		{Status: model.RunStatusAcquiring, CreatedAt: now.Add(-time.Minute)},
		finishedRun(model.RunStatusFailed, "", 9.0, now.Add(-48*time.Hour)),
	}

	lister := &mockRunLister{}
	lister.On("ListRuns", mock.Anything, model.RunFilter{Limit: collectLimit}).Return(runs, nil)

	c := NewCollector(lister)
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 2, snap.Complete)
	assert.Equal(t, 1, snap.Degraded)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Running)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)
	assert.InDelta(t, 0.5, snap.DegradeRate, 1e-9)
	assert.InDelta(t, 0.13, snap.CostUSD, 1e-9)
	assert.Equal(t, 750, snap.AvgTokens)
	lister.AssertExpectations(t)
}

func TestCollector_Collect_Error(t *testing.T) {
	t.Parallel()

	lister := &mockRunLister{}
	lister.On("ListRuns", mock.Anything, mock.Anything).Return(nil, eris.New("db down"))

	_, err := NewCollector(lister).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}

func TestChecker_Check(t *testing.T) {
	t.Parallel()

	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	now := time.Now()
	runs := make([]model.Run, 0, 6)
	for i := 0; i < 6; i++ {
		runs = append(runs, finishedRun(model.RunStatusFailed, "", 0, now))
	}
	lister := &mockRunLister{}
	lister.On("ListRuns", mock.Anything, mock.Anything).Return(runs, nil)

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	checker := NewChecker(NewCollector(lister), NewAlerter(cfg), cfg)

	assert.Equal(t, 1, checker.Check(context.Background()))
	assert.Equal(t, int32(1), received.Load())

	// Still firing: not resent.
	assert.Equal(t, 0, checker.Check(context.Background()))
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_RefiresAfterClearing(t *testing.T) {
	t.Parallel()

	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	now := time.Now()
	var failing, healthy []model.Run
	for i := 0; i < 6; i++ {
		failing = append(failing, finishedRun(model.RunStatusFailed, "", 0, now))
		healthy = append(healthy, finishedRun(model.RunStatusComplete, "", 0, now))
	}
	lister := &mockRunLister{}
	lister.On("ListRuns", mock.Anything, mock.Anything).Return(failing, nil).Once()
	lister.On("ListRuns", mock.Anything, mock.Anything).Return(healthy, nil).Once()
	lister.On("ListRuns", mock.Anything, mock.Anything).Return(failing, nil).Once()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	checker := NewChecker(NewCollector(lister), NewAlerter(cfg), cfg)

	assert.Equal(t, 1, checker.Check(context.Background()))
	assert.Equal(t, 0, checker.Check(context.Background()))
	assert.Equal(t, 1, checker.Check(context.Background()))
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_CollectError(t *testing.T) {
	t.Parallel()

	lister := &mockRunLister{}
	lister.On("ListRuns", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	checker := NewChecker(NewCollector(lister), NewAlerter(testMonitoringConfig()), testMonitoringConfig())
	assert.Equal(t, 0, checker.Check(context.Background()))
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lister := &mockRunLister{}
	lister.On("ListRuns", mock.Anything, mock.Anything).Return([]model.Run{}, nil).Maybe()
	checker := NewChecker(NewCollector(lister), NewAlerter(testMonitoringConfig()), testMonitoringConfig())
	go func() {
		checker.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop")
	}
}

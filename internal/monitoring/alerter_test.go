package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-writer/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		DegradedThreshold:    0.50,
		CostThresholdUSD:     20.0,
		LookbackWindowHours:  24,
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	t.Parallel()
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&Snapshot{
		Total:    40,
		Complete: 38,
		Failed:   2,
		FailRate: 0.05,
		CostUSD:  4.0,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		snap Snapshot
		want AlertType
		text string
	}{
		{
			name: "failure rate",
			snap: Snapshot{Total: 20, Complete: 12, Failed: 8, FailRate: 0.4, LookbackHours: 24},
			want: AlertFailureRate,
			text: "40.0%",
		},
		{
			name: "degraded rate",
			snap: Snapshot{Total: 10, Complete: 10, Degraded: 7, DegradeRate: 0.7, LookbackHours: 24},
			want: AlertDegradedRate,
			text: "70.0%",
		},
		{
			name: "cost overrun",
			snap: Snapshot{Total: 3, Complete: 3, CostUSD: 25.5, LookbackHours: 24},
			want: AlertCostOverrun,
			text: "$25.50",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			alerts := NewAlerter(testMonitoringConfig()).Evaluate(&tt.snap)
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.want, alerts[0].Type)
			assert.Contains(t, alerts[0].Message, tt.text)
		})
	}
}

func TestAlerter_Evaluate_TooFewRuns(t *testing.T) {
	t.Parallel()
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&Snapshot{Total: 2, Complete: 1, Failed: 1, FailRate: 0.5})
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts(t *testing.T) {
	t.Parallel()

	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, AlertCostOverrun, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertCostOverrun}, {Type: AlertCostOverrun}})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	sent := NewAlerter(cfg).SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}})
	assert.Zero(t, sent)
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	t.Parallel()
	sent := NewAlerter(testMonitoringConfig()).SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}})
	assert.Zero(t, sent)
}

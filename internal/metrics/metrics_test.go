package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/tripvoice/campaign"
	"github.com/tbxark/tripvoice/stage"
	"github.com/tbxark/tripvoice/types"
	"github.com/tbxark/tripvoice/workflow"
)

func TestObserveTransition(t *testing.T) {
	m := New()
	ctx := context.Background()
	m.ObserveTransition(ctx, workflow.TransitionEvent{
		From:     types.StageBudget,
		To:       types.StageActivities,
		Outcome:  stage.OutcomeAdvanced,
		Duration: 120 * time.Millisecond,
	})
	m.ObserveTransition(ctx, workflow.TransitionEvent{
		From:     types.StageProcessing,
		To:       types.StageComplete,
		Outcome:  stage.OutcomeAdvanced,
		Degraded: []string{stage.StepFlightSearch, stage.StepSummary},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("budget", "activities", "advanced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded.WithLabelValues(stage.StepFlightSearch)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestObserveCallMatchesResultHook(t *testing.T) {
	m := New()
	var hook campaign.ResultHook = m.ObserveCall
	hook("+1", nil)
	hook("+2", errors.New("busy"))
	hook("+3", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("failed")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveCall("+1", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tripvoice_campaign_calls_total{result="completed"} 1`)
}

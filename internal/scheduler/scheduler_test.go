package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"impact-lending-backend/internal/application/reconciliation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReconciler struct{ runs int32 }

func (c *countingReconciler) Run(ctx context.Context) *reconciliation.Report {
	atomic.AddInt32(&c.runs, 1)
	return &reconciliation.Report{}
}

func TestNew_RegistersJob(t *testing.T) {
	s, err := New("0 */15 * * * *", &countingReconciler{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())

	s, err = New("", &countingReconciler{})
	require.NoError(t, err)
	assert.Zero(t, s.Jobs())
}

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New("*/15 * * * *", &countingReconciler{})
	assert.Error(t, err)
}

func TestScheduler_RunsJob(t *testing.T) {
	rec := &countingReconciler{}
	s, err := New("* * * * * *", rec)
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&rec.runs) > 0 }, 3*time.Second, 50*time.Millisecond)
}

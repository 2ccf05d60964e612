package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSet_RegisterTwiceIsTolerated(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := NewSet()
	require.NoError(t, s.Register(reg))
	require.NoError(t, s.Register(reg))

	s.AssignmentOutcomes.WithLabelValues("assign", "ok").Inc()
	s.WalletCredits.Inc()

	require.InDelta(t, 1, testutil.ToFloat64(s.AssignmentOutcomes.WithLabelValues("assign", "ok")), 1e-9)
	n, err := testutil.GatherAndCount(reg, "dispatch_wallet_credits_total", "dispatch_assignment_outcomes_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

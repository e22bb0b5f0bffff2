package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	ProbeAttemptsTotal.WithLabelValues("match").Inc()

	if got := testutil.ToFloat64(ProbeAttemptsTotal.WithLabelValues("match")); got < 1 {
		t.Errorf("probe_attempts_total{outcome=match} = %v, want >= 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("Gather() returned no metric families")
	}
}

func TestRegister_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering the same collectors twice should panic")
		}
	}()
	Register(reg)
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestKeyVerificationsLabels(t *testing.T) {
	before := testutil.ToFloat64(KeyVerifications.WithLabelValues("write", Result(false)))
	KeyVerifications.WithLabelValues("write", Result(false)).Inc()
	after := testutil.ToFloat64(KeyVerifications.WithLabelValues("write", "rejected"))

	if after-before != 1 {
		t.Errorf("rejected write verifications delta = %v, want 1", after-before)
	}
}

func TestResult(t *testing.T) {
	if Result(true) != "ok" || Result(false) != "rejected" {
		t.Errorf("Result() labels = %q/%q", Result(true), Result(false))
	}
}

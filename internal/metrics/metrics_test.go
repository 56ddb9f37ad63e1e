package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveFetch(t *testing.T) {
	before := testutil.ToFloat64(harvesterFetchesTotal.WithLabelValues("export", "200"))
	ObserveFetch("export", 200, 150*time.Millisecond)
	ObserveFetch("export", 200, 0)

	if got := testutil.ToFloat64(harvesterFetchesTotal.WithLabelValues("export", "200")); got != before+2 {
		t.Errorf("expected fetch counter to grow by 2, got %f -> %f", before, got)
	}
	if n := testutil.CollectAndCount(harvesterFetchDurationSeconds); n == 0 {
		t.Error("expected fetch duration to be observed")
	}
}

func TestObserveStationAndReadings(t *testing.T) {
	before := testutil.ToFloat64(harvesterStationsTotal.WithLabelValues("imported"))
	ObserveStation("imported")
	if got := testutil.ToFloat64(harvesterStationsTotal.WithLabelValues("imported")); got != before+1 {
		t.Errorf("expected station counter to grow by 1, got %f", got)
	}

	stored := testutil.ToFloat64(harvesterReadingsStoredTotal)
	AddReadingsStored(3)
	AddReadingsStored(0)
	AddReadingsStored(-1)
	if got := testutil.ToFloat64(harvesterReadingsStoredTotal); got != stored+3 {
		t.Errorf("expected readings counter to grow by 3, got %f", got)
	}
}

func TestObserveRun(t *testing.T) {
	finished := time.Unix(1700000000, 0)
	ObserveRun("success", finished)
	if got := testutil.ToFloat64(harvesterLastRunTimestamp); got != float64(finished.Unix()) {
		t.Errorf("expected last run gauge %d, got %f", finished.Unix(), got)
	}
}

func TestObserveRejectedAndAmbiguous(t *testing.T) {
	ObserveRejectedRow("temp_ar_c")
	ObserveAmbiguousColumn("vel_vento_ms")
	ObservePacingDelay(time.Second)

	if got := testutil.ToFloat64(harvesterRowsRejectedTotal.WithLabelValues("temp_ar_c")); got < 1 {
		t.Errorf("expected rejected rows to be counted, got %f", got)
	}
	if got := testutil.ToFloat64(harvesterAmbiguousColumnsTotal.WithLabelValues("vel_vento_ms")); got < 1 {
		t.Errorf("expected ambiguous columns to be counted, got %f", got)
	}
}

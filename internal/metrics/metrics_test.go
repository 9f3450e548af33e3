package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounters(t *testing.T) {
	r := New()

	r.FileIngested(StateDone)
	r.FileIngested(StateDone)
	r.FileIngested(StateAborted)
	r.RecordsIngested(2, 1, 4)
	r.Scanned(3)
	r.Searched(5)
	r.Predicted(OutcomeDegraded)
	r.ToolFailed("plink")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Files.WithLabelValues(StateDone)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Files.WithLabelValues(StateAborted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Records))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SkippedRecords))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.Variants))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.ScanRecords))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.Queries))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Predictions.WithLabelValues(OutcomeDegraded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ToolFailures.WithLabelValues("plink")))
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.FileIngested(StateDone)
		r.RecordsIngested(1, 1, 1)
		r.Scanned(1)
		r.Searched(1)
		r.Predicted(OutcomeOK)
		r.ToolFailed("plink")
	})
}

func TestWriteToTextfile(t *testing.T) {
	r := New()
	r.RecordsIngested(7, 0, 0)

	path := filepath.Join(t.TempDir(), "genomatch.prom")
	require.NoError(t, r.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "genomatch_ingest_records_total 7")
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordRefresh("intelligence", "primary-ai", "ok")
	r.RecordRefresh("intelligence", "primary-ai", "ok")
	r.RecordCacheLookup("quotes", false)
	r.RecordSwept("quotes", 0)
	r.RecordSwept("quotes", 3)
	r.RecordRunDropped("intelligence")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.refreshes.WithLabelValues("intelligence", "primary-ai", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lookups.WithLabelValues("quotes", "false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.sweptEntries.WithLabelValues("quotes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsDropped.WithLabelValues("intelligence")))
}

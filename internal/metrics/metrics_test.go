package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector()

	c.RecordPass("completed", 2*time.Second)
	c.RecordRows("updated", 7)
	c.RecordRows("skipped_no_barcode", 0) // zero counts are not recorded
	c.RecordResolverBatch(150 * time.Millisecond)
	c.RecordResolverBatch(200 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.passesTotal.WithLabelValues("completed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.rowsTotal.WithLabelValues("updated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.rowsTotal.WithLabelValues("skipped_no_barcode")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.resolverBatchesTotal))
}

func TestCollectorsDoNotCollide(t *testing.T) {
	// Each collector owns its registry, so building two in one process
	// must not panic with a duplicate registration.
	a := NewCollector()
	b := NewCollector()
	a.RecordPass("completed", time.Second)
	b.RecordPass("failed", time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.passesTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.passesTotal.WithLabelValues("failed")))
}

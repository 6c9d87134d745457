package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncDrop_CountsOutcomeAndReason(t *testing.T) {
	before := testutil.ToFloat64(PipelineItemsTotal.WithLabelValues(OutcomeDropped))
	beforeReason := testutil.ToFloat64(PipelineDropsTotal.WithLabelValues("unknown"))

	IncDrop("")

	assert.Equal(t, before+1, testutil.ToFloat64(PipelineItemsTotal.WithLabelValues(OutcomeDropped)))
	assert.Equal(t, beforeReason+1, testutil.ToFloat64(PipelineDropsTotal.WithLabelValues("unknown")))
}

func TestIncPublish_SplitsByResult(t *testing.T) {
	ok := testutil.ToFloat64(PublishTotal.WithLabelValues("test", "ok"))
	failed := testutil.ToFloat64(PublishTotal.WithLabelValues("test", "error"))

	IncPublish("test", nil)
	IncPublish("test", errors.New("boom"))
	IncPublish("test", nil)

	assert.Equal(t, ok+2, testutil.ToFloat64(PublishTotal.WithLabelValues("test", "ok")))
	assert.Equal(t, failed+1, testutil.ToFloat64(PublishTotal.WithLabelValues("test", "error")))
}

func TestIncDecode_DefaultsKind(t *testing.T) {
	before := testutil.ToFloat64(DecodeTotal.WithLabelValues("unknown", "error"))
	IncDecode("", "error")
	assert.Equal(t, before+1, testutil.ToFloat64(DecodeTotal.WithLabelValues("unknown", "error")))
}

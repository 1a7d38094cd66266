package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/moods", "200"))

	RecordAPIRequest("GET", "/api/moods", "200", 3*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/moods", "200"))
	assert.InDelta(t, 1.0, after-before, 1e-9)
}

func TestRecordMix(t *testing.T) {
	before := testutil.ToFloat64(MixesGenerated.WithLabelValues("jellyfin", "none"))

	RecordMix("jellyfin", "", 12, time.Millisecond)

	after := testutil.ToFloat64(MixesGenerated.WithLabelValues("jellyfin", "none"))
	assert.InDelta(t, 1.0, after-before, 1e-9)
}

func TestRecordSync(t *testing.T) {
	errorsBefore := testutil.ToFloat64(SyncErrors.WithLabelValues("spotify"))

	RecordSync("spotify", time.Second, 42, nil)
	assert.InDelta(t, 42.0, testutil.ToFloat64(SyncItems.WithLabelValues("spotify")), 1e-9)
	assert.Greater(t, testutil.ToFloat64(SyncLastSuccess.WithLabelValues("spotify")), 0.0)

	RecordSync("spotify", time.Second, 0, errors.New("boom"))
	assert.InDelta(t, 1.0, testutil.ToFloat64(SyncErrors.WithLabelValues("spotify"))-errorsBefore, 1e-9)
	// A failed sync leaves the last item count in place
	assert.InDelta(t, 42.0, testutil.ToFloat64(SyncItems.WithLabelValues("spotify")), 1e-9)
}

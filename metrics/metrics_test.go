package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusluizig/imovelguide-integracao-sub000/report"
)

func TestObserveRunAndReport(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	done := r.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.running))
	done()
	assert.Zero(t, testutil.ToFloat64(r.running))

	r.ObserveRun("vrsync", OutcomeSuccess, 3*time.Second)
	r.ObserveRun("", OutcomeDeferred, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("vrsync", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("unknown", OutcomeDeferred)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration), "deferred runs are not timed")

	rep := report.New()
	rep.Provider = "vrsync"
	rep.Inserted = 2
	rep.ImageFailures = 1
	rep.Skip("X1", report.ReasonDuplicateCode, "")
	rep.Skip("Y", report.ReasonUnresolvedOfferType, "")
	r.ObserveReport(rep)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.records.WithLabelValues("vrsync", "inserted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.records.WithLabelValues("vrsync", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skips.WithLabelValues("vrsync", string(report.ReasonDuplicateCode))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.images.WithLabelValues("failed")))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RunStarted()()
		r.ObserveRun("zapimoveis", OutcomeFailed, time.Second)
		r.ObserveReport(report.New())
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).ObserveRun("imovelweb", OutcomeFailed, time.Second)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `imovelguide_runs_total{outcome="failed",provider="imovelweb"} 1`)
}

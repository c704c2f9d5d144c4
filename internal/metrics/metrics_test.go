package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyintent/internal/pointer"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserverCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	var obs pointer.Observer = m
	obs.Bounce(pointer.MoveBounce)
	obs.Bounce(pointer.MoveBounce)
	obs.Bounce(pointer.TimeBounce)
	obs.MultiTapCycle()
	obs.RepeatFired()
	obs.LongPress()

	body := scrape(t, m)
	assert.Contains(t, body, `keyintent_debounce_absorbed_total{kind="move"} 2`)
	assert.Contains(t, body, `keyintent_debounce_absorbed_total{kind="time"} 1`)
	assert.Contains(t, body, "keyintent_multitap_cycles_total 1")
	assert.Contains(t, body, "keyintent_key_repeats_total 1")
	assert.Contains(t, body, "keyintent_long_presses_total 1")
}

func TestQueryAndCommitCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordQuery(200*time.Microsecond, true)
	m.RecordQuery(300*time.Microsecond, false)
	m.RecordKey()
	m.RecordKey()
	m.RecordKey()
	m.RecordWord(SourceTyped)
	m.RecordWord(SourceCorrected)
	m.RecordLearned()

	body := scrape(t, m)
	assert.Contains(t, body, "keyintent_suggestion_queries_total 2")
	assert.Contains(t, body, "keyintent_corrections_offered_total 1")
	assert.Contains(t, body, "keyintent_suggestion_query_duration_seconds_count 2")
	assert.Contains(t, body, "keyintent_keys_committed_total 3")
	assert.Contains(t, body, `keyintent_words_committed_total{source="typed"} 1`)
	assert.Contains(t, body, `keyintent_words_committed_total{source="corrected"} 1`)
	assert.Contains(t, body, "keyintent_words_learned_total 1")
}

func TestSessionGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded()

	body := scrape(t, m)
	assert.Contains(t, body, "keyintent_sessions_active 1")
	assert.Contains(t, body, "keyintent_sessions_total 2")
}

func TestConfigReloads(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordConfigReload(nil)
	m.RecordConfigReload(errors.New("bad toml"))

	body := scrape(t, m)
	assert.Contains(t, body, `keyintent_config_reloads_total{result="ok"} 1`)
	assert.Contains(t, body, `keyintent_config_reloads_total{result="error"} 1`)
}

func TestDefaultRegistryHasRuntimeCollectors(t *testing.T) {
	m := New(nil)
	require.NotNil(t, m.Registry())

	body := scrape(t, m)
	assert.True(t, strings.Contains(body, "go_goroutines"), "runtime collector missing")
}

func TestSeparateRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.RecordKey()
	assert.Contains(t, scrape(t, a), "keyintent_keys_committed_total 1")
	assert.Contains(t, scrape(t, b), "keyintent_keys_committed_total 0")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Bounce(pointer.TimeBounce)
		m.MultiTapCycle()
		m.RepeatFired()
		m.LongPress()
		m.RecordKey()
		m.RecordWord(SourcePicked)
		m.RecordQuery(time.Millisecond, true)
		m.RecordLearned()
		m.RecordConfigReload(nil)
		m.SessionStarted()
		m.SessionEnded()
	})
	assert.Nil(t, m.Registry())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

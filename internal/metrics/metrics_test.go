package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue は指定名のカウンタの合計値を返す。見つからなければ-1。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return -1
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSessionPhase_IncrementsCounter はセッション遷移カウンタが増加することを検証する。
func TestRecordSessionPhase_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionPhase("authenticated")
	c.RecordSessionPhase("authenticated")
	c.RecordSessionPhase("errored")

	if got := counterValue(t, reg, "lumina_session_phase_transitions_total"); got != 3 {
		t.Errorf("session_phase_transitions_total = %v, want 3", got)
	}
}

// TestRecordFetch_RecordsResultAndLatency は取得カウンタが結果別に増加することを検証する。
func TestRecordFetch_RecordsResultAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetch("studies", nil, 50*time.Millisecond)
	c.RecordFetch("studies", errors.New("timeout"), 10*time.Second)

	if got := counterValue(t, reg, "lumina_collection_fetch_total"); got != 2 {
		t.Errorf("collection_fetch_total = %v, want 2", got)
	}
}

// TestRecordCommit_IncrementsCounter は保存カウンタが増加することを検証する。
func TestRecordCommit_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCommit("studies", nil)
	c.RecordCommit("events", errors.New("constraint violation"))

	if got := counterValue(t, reg, "lumina_admin_commit_total"); got != 2 {
		t.Errorf("admin_commit_total = %v, want 2", got)
	}
}

// TestRecordIngest_SeparatesSuccessAndFailure は取り込みカウンタの分岐を検証する。
func TestRecordIngest_SeparatesSuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordIngest(3, 2, nil)
	c.RecordIngest(5, 5, errors.New("connection reset"))

	if got := counterValue(t, reg, "lumina_stream_ingest_inserted_total"); got != 3 {
		t.Errorf("stream_ingest_inserted_total = %v, want 3", got)
	}
	if got := counterValue(t, reg, "lumina_stream_ingest_updated_total"); got != 2 {
		t.Errorf("stream_ingest_updated_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "lumina_stream_ingest_fail_total"); got != 1 {
		t.Errorf("stream_ingest_fail_total = %v, want 1", got)
	}
}

// TestHandler_ServesMetrics は/metrics出力に登録メトリクスが含まれることを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordProfileProvisioned()

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "lumina_profiles_provisioned_total 1") {
		t.Errorf("metrics output missing provisioned counter:\n%s", body)
	}
}

package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestInit_RegistersAndRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)
	// second registration into the same registry must not panic
	Init(reg, true)

	ExposeBuildInfo("test")
	ObserveHTTP("POST", "/v1/analyze", 200, 0.002)
	ObserveQuery("abutting", 0.0001)
	ObserveSetSize(12)
	IncCacheHit("memory")
	IncCacheMiss("redis")
	ObserveCacheOp("get", nil, 0.001)
	ObserveCacheOp("set", errors.New("down"), 0.001)

	body := scrape(t, reg)
	for _, want := range []string{
		`app_build_info{version="test"} 1`,
		`http_requests_total{method="POST",route="/v1/analyze",status="200"}`,
		`engine_query_duration_seconds_bucket{query="abutting"`,
		`engine_rectangles_count`,
		`cache_results_total{outcome="hit",tier="memory"}`,
		`cache_results_total{outcome="miss",tier="redis"}`,
		`cache_op_total{op="get",result="ok"}`,
		`cache_op_total{op="set",result="error"}`,
		`redis_operation_duration_seconds_bucket{op="set"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestInit_DisabledIsNoop(t *testing.T) {
	Init(nil, false)
	defer Init(prometheus.NewRegistry(), true)

	before := testCount(t, "GET", "/disabled")
	ObserveHTTP("GET", "/disabled", 200, 0.001)
	if after := testCount(t, "GET", "/disabled"); after != before {
		t.Fatalf("counter moved while disabled: %v -> %v", before, after)
	}
}

func testCount(t *testing.T, method, route string) float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(httpRequestsTotal)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			match := 0
			for _, lp := range m.GetLabel() {
				if (lp.GetName() == "method" && lp.GetValue() == method) ||
					(lp.GetName() == "route" && lp.GetValue() == route) {
					match++
				}
			}
			if match == 2 {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

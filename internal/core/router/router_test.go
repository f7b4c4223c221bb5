package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/rectrel/internal/cache"
	"github.com/mohammed-shakir/rectrel/internal/cache/resultcache"
	"github.com/mohammed-shakir/rectrel/internal/core/model"
	"github.com/mohammed-shakir/rectrel/internal/engine"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRouter(t *testing.T, c *resultcache.Cache, limits Limits) http.Handler {
	t.Helper()
	svc := NewService(quiet(), engine.New(engine.DefaultOptions()), c, limits)
	r := chi.NewRouter()
	svc.Mount(r)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

const abuttingPair = `{"rectangles":[{"id":1,"x1":0,"y1":0,"x2":2,"y2":2},{"id":2,"x1":2,"y1":0,"x2":4,"y2":2}],"point":{"x":2,"y":1}}`

func TestEnclosing_JSONAndText(t *testing.T) {
	h := newRouter(t, nil, Limits{})

	rr := post(t, h, "/v1/enclosing", abuttingPair)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got struct{ IDs []int }
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got.IDs, []int{1, 2}) {
		t.Fatalf("ids=%v want [1 2]", got.IDs)
	}

	rr = post(t, h, "/v1/enclosing?format=text", abuttingPair)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "{1, 2}" {
		t.Fatalf("text body=%q", body)
	}
}

func TestEndpoints_TextForms(t *testing.T) {
	h := newRouter(t, nil, Limits{})
	cases := map[string]string{
		"/v1/non-overlapping": "{}",
		"/v1/overlap-groups":  "{{1, 2}}",
		"/v1/contained":       "{}",
		"/v1/abutting":        "{{1, 'e', 2}, {2, 'w', 1}}",
	}
	for path, want := range cases {
		rr := post(t, h, path+"?format=text", abuttingPair)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		if got := strings.TrimSpace(rr.Body.String()); got != want {
			t.Fatalf("%s got %q want %q", path, got, want)
		}
	}
}

func TestAbutting_JSONShape(t *testing.T) {
	h := newRouter(t, nil, Limits{})
	rr := post(t, h, "/v1/abutting", abuttingPair)
	want := `{"edges":[{"a":1,"dir":"e","b":2},{"a":2,"dir":"w","b":1}]}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestContained_JSONShape(t *testing.T) {
	h := newRouter(t, nil, Limits{})
	body := `{"rectangles":[{"id":1,"x1":0,"y1":0,"x2":10,"y2":10},{"id":2,"x1":2,"y1":2,"x2":4,"y2":4}]}`
	rr := post(t, h, "/v1/contained", body)
	want := `{"entries":[{"outer":1,"inner":[2]}]}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestAnalyze_CachedSecondCall(t *testing.T) {
	c := resultcache.New(quiet(), resultcache.Config{TTL: time.Minute},
		resultcache.Tier{Name: "memory", Store: cache.NewMemory(16, time.Minute)})
	h := newRouter(t, c, Limits{})

	first := post(t, h, "/v1/analyze", abuttingPair)
	if first.Code != http.StatusOK || first.Header().Get("X-Cache") != "miss" {
		t.Fatalf("first status=%d x-cache=%q body=%s", first.Code, first.Header().Get("X-Cache"), first.Body.String())
	}
	second := post(t, h, "/v1/analyze", abuttingPair)
	if second.Header().Get("X-Cache") != "memory" {
		t.Fatalf("second x-cache=%q want memory", second.Header().Get("X-Cache"))
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("cached body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	var a model.Analysis
	if err := json.Unmarshal(second.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(a.Enclosing, []int{1, 2}) || len(a.OverlapGroups) != 1 || len(a.Abutting) != 2 {
		t.Fatalf("unexpected analysis %+v", a)
	}
}

func TestAnalyze_TextWithoutCache(t *testing.T) {
	h := newRouter(t, nil, Limits{})
	rr := post(t, h, "/v1/analyze?format=text", abuttingPair)
	want := "Enclosing rectangles: {1, 2}\n" +
		"Non-overlapping rectangles: {}\n" +
		"Overlapping rectangles: {{1, 2}}\n" +
		"Contained rectangles: {}\n" +
		"Abutting rectangles: {{1, 'e', 2}, {2, 'w', 1}}\n"
	if got := rr.Body.String(); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func rect(id int) string {
	return fmt.Sprintf(`{"id":%d,"x1":0,"y1":0,"x2":1,"y2":1}`, id)
}

func TestErrors_StatusMapping(t *testing.T) {
	h := newRouter(t, nil, Limits{MaxRectangles: 2, MaxBodyBytes: 512})
	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad json", "/v1/analyze", `{"rectangles":[`, http.StatusBadRequest},
		{"wrong type", "/v1/analyze", `{"rectangles":[{"id":"one"}]}`, http.StatusBadRequest},
		{"inverted", "/v1/analyze", `{"rectangles":[{"id":1,"x1":3,"y1":0,"x2":1,"y2":1}]}`, http.StatusBadRequest},
		{"duplicate", "/v1/analyze", `{"rectangles":[` + rect(1) + `,` + rect(1) + `]}`, http.StatusBadRequest},
		{"missing fields", "/v1/analyze", `{"rectangles":[{"id":1,"x1":0,"y1":0},{"id":2}]}`, http.StatusBadRequest},
		{"missing id", "/v1/non-overlapping", `{"rectangles":[{"x1":0,"y1":0,"x2":1,"y2":1}]}`, http.StatusBadRequest},
		{"half point", "/v1/enclosing", `{"rectangles":[],"point":{"x":1}}`, http.StatusBadRequest},
		{"missing point", "/v1/enclosing", `{"rectangles":[]}`, http.StatusBadRequest},
		{"too many", "/v1/analyze", `{"rectangles":[` + rect(1) + `,` + rect(2) + `,` + rect(3) + `]}`, http.StatusUnprocessableEntity},
		{"too large", "/v1/analyze", `{"rectangles":[` + strings.Repeat(rect(1)+`,`, 20) + rect(2) + `]}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, h, tc.path, tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tc.want, rr.Body.String())
			}
			var e struct{ Error string }
			if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Error == "" {
				t.Fatalf("expected json error body, got %s", rr.Body.String())
			}
		})
	}
}

func TestEmptySet_IsValid(t *testing.T) {
	h := newRouter(t, nil, Limits{})
	rr := post(t, h, "/v1/analyze", `{"rectangles":[],"point":{"x":0,"y":0}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	want := `{"point":{"x":0,"y":0},"enclosing":[],"non_overlapping":[],"overlap_groups":[],"contained":[],"abutting":[]}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestParseRequest_MissingFieldIsInvalidRectangle(t *testing.T) {
	svc := NewService(quiet(), engine.New(engine.DefaultOptions()), nil, Limits{})
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze",
		strings.NewReader(`{"rectangles":[{"id":1,"x1":0,"y1":0},{"id":2}]}`))
	_, err := svc.ParseRequest(httptest.NewRecorder(), req)
	if !errors.Is(err, model.ErrInvalidRectangle) {
		t.Fatalf("err=%v want ErrInvalidRectangle", err)
	}
}

func TestAnalyze_NoPointEncodesEnclosingNull(t *testing.T) {
	h := newRouter(t, nil, Limits{})
	rr := post(t, h, "/v1/analyze", `{"rectangles":[`+rect(1)+`]}`)
	want := `{"enclosing":null,"non_overlapping":[1],"overlap_groups":[],"contained":[],"abutting":[]}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newRouter(t, nil, Limits{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/analyze", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d want 405", rr.Code)
	}
}

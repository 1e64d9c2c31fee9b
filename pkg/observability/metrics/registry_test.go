package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestQueryMetrics_Observe(t *testing.T) {
	reg := NewRegistry()
	q := reg.Queries()

	q.Observe("users", OperationFind, 10*time.Millisecond, nil)
	q.Observe("users", OperationFind, time.Millisecond, errors.New("boom"))
	q.Observe("users", OperationCount, time.Millisecond, nil)
	q.ObserveRecords("users", 3)

	if got := testutil.ToFloat64(q.operations.WithLabelValues("users", OperationFind, "success")); got != 1 {
		t.Fatalf("find success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(q.operations.WithLabelValues("users", OperationFind, "error")); got != 1 {
		t.Fatalf("find error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(q.operations.WithLabelValues("users", OperationCount, "success")); got != 1 {
		t.Fatalf("count success = %v, want 1", got)
	}
}

func TestQueryMetrics_NilIsNoop(t *testing.T) {
	var q *QueryMetrics
	q.Observe("users", OperationFind, time.Second, nil)
	q.ObserveRecords("users", 1)
}

func TestRegistry_Handler(t *testing.T) {
	reg := NewRegistry()
	reg.Queries().Observe("posts", OperationCount, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "querykit_materializations_total") {
		t.Fatal("expected query counter in exposition")
	}
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.Queries().Observe("users", OperationFind, time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "querykit.prom")
	if err := reg.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), `querykit_materializations_total{model="users",operation="find",outcome="success"} 1`) {
		t.Fatalf("unexpected textfile:\n%s", content)
	}
}

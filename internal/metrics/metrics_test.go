package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerExposesCollectors(t *testing.T) {
	SocketOptionErrors.WithLabelValues("keepalive").Add(0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"tcpredir_connections_accepted_total",
		"tcpredir_active_connections",
		"tcpredir_connection_duration_seconds",
		`tcpredir_socket_option_errors_total{op="keepalive"}`,
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("missing %s", name)
		}
	}
}

func TestRejectionCounters(t *testing.T) {
	c := ConnectionsRejected.WithLabelValues(RejectTooMany)
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Fatalf("counter went from %v to %v", before, got)
	}
}

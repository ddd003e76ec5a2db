package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/roomlink/internal/ddp"
	"github.com/danmuck/roomlink/internal/testutil/testlog"
)

var _ ddp.Metrics = (*ClientMetrics)(nil)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("fakeroom", "GET", "/health", 200, 12*time.Millisecond)
	m := NewClientMetrics("fakeroom")
	m.FrameSent(ddp.MsgMethod)
	m.FrameReceived(ddp.MsgResult)
	m.ProtocolError()
	m.RequestDone(ddp.KindMethod.String(), ddp.OutcomeOK, 30*time.Millisecond)
}

func TestAdminRouterHealthReadyAndMetrics(t *testing.T) {
	testlog.Start(t)
	connected := false
	r := NewAdminRouter("ddpctl", []string{"http://localhost:3000"}, func() ClientStatus {
		return ClientStatus{State: "open", Connected: connected, Session: "s1"}
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
	var body struct {
		Status string       `json:"status"`
		Client ClientStatus `json:"client"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "ok" || body.Client.State != "open" || body.Client.Session != "s1" {
		t.Fatalf("unexpected health body: %+v", body)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready before connect status=%d", rec.Code)
	}
	connected = true
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready after connect status=%d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("cors origin header=%q", got)
	}

	NewClientMetrics("ddpctl").FrameSent(ddp.MsgConnect)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "roomlink_ddp_frames_sent_total") {
		t.Fatalf("metrics output missing ddp counters")
	}
}

package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestLog(t *testing.T) *CSVLog {
	t.Helper()
	alertLog, err := OpenCSVLog(filepath.Join(t.TempDir(), "alert_logs.csv"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	t.Cleanup(func() { alertLog.Close() })
	return alertLog
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestDispatchLogsAndDelivers(t *testing.T) {
	payloadCh := make(chan Payload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload Payload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	alertLog := openTestLog(t)
	dispatcher, err := NewDispatcher(alertLog, quietLogger(), WithChannel(channel))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	outcome := dispatcher.Dispatch(context.Background(), testEvent("SN-001", ts))
	if !outcome.Logged || !outcome.Delivered || outcome.Duplicate {
		t.Fatalf("outcome %+v, want logged and delivered", outcome)
	}

	select {
	case payload := <-payloadCh:
		if payload.DeviceID != "SN-001" || payload.FlowRate != 45.2 || payload.WaterLevel != 2.8 || payload.Temperature != 23.5 {
			t.Fatalf("payload fields: %+v", payload)
		}
		if payload.Timestamp != "2026-08-30T12:00:00Z" {
			t.Fatalf("payload timestamp: %q", payload.Timestamp)
		}
		if !strings.Contains(payload.Title, "SN-001") {
			t.Fatalf("title missing device: %q", payload.Title)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery received")
	}

	records, err := alertLog.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d audit rows, want 1", len(records))
	}
}

func TestDispatchDedupsByDeviceAndTimestamp(t *testing.T) {
	alertLog := openTestLog(t)
	deliveries := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	dispatcher, err := NewDispatcher(alertLog, quietLogger(), WithChannel(channel))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	event := testEvent("SN-001", ts)

	first := dispatcher.Dispatch(context.Background(), event)
	second := dispatcher.Dispatch(context.Background(), event)
	if !first.Logged || first.Duplicate {
		t.Fatalf("first outcome %+v", first)
	}
	if !second.Duplicate || second.Logged || second.Delivered {
		t.Fatalf("second outcome %+v, want duplicate suppression", second)
	}

	records, err := alertLog.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d audit rows, want exactly 1", len(records))
	}
	if deliveries != 1 {
		t.Fatalf("got %d deliveries, want exactly 1", deliveries)
	}

	// A different timestamp is a new event.
	third := dispatcher.Dispatch(context.Background(), testEvent("SN-001", ts.Add(time.Hour)))
	if third.Duplicate || !third.Logged {
		t.Fatalf("third outcome %+v", third)
	}
}

func TestDeliveryFailureDoesNotSkipLog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	alertLog := openTestLog(t)
	dispatcher, err := NewDispatcher(alertLog, quietLogger(), WithChannel(channel))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	outcome := dispatcher.Dispatch(context.Background(), testEvent("SN-001", time.Now().UTC()))
	if !outcome.Logged {
		t.Fatalf("outcome %+v, want logged despite delivery failure", outcome)
	}
	if outcome.Delivered {
		t.Fatalf("outcome %+v, delivery should have failed", outcome)
	}
	records, err := alertLog.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d audit rows, want 1", len(records))
	}
}

func TestNoChannelStillLogs(t *testing.T) {
	alertLog := openTestLog(t)
	dispatcher, err := NewDispatcher(alertLog, quietLogger())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	outcome := dispatcher.Dispatch(context.Background(), testEvent("SN-001", time.Now().UTC()))
	if !outcome.Logged || outcome.Delivered {
		t.Fatalf("outcome %+v, want logged without delivery", outcome)
	}
}

type failingLog struct{}

func (failingLog) Append(Event) error          { return context.DeadlineExceeded }
func (failingLog) Seen(string, time.Time) bool { return false }

func TestLogFailureStillAttemptsDelivery(t *testing.T) {
	delivered := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	channel, err := NewWebhookChannel(server.URL)
	if err != nil {
		t.Fatalf("new channel: %v", err)
	}
	dispatcher, err := NewDispatcher(failingLog{}, quietLogger(), WithChannel(channel))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	outcome := dispatcher.Dispatch(context.Background(), testEvent("SN-001", time.Now().UTC()))
	if outcome.Logged {
		t.Fatalf("outcome %+v, log should have failed", outcome)
	}
	if !outcome.Delivered {
		t.Fatalf("outcome %+v, delivery should still be attempted", outcome)
	}
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery not attempted after log failure")
	}
}

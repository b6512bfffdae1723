package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"aquawatch/internal/anomaly"
	"aquawatch/internal/decision"
	"aquawatch/internal/dispatch"
	"aquawatch/internal/forecast"
	"aquawatch/internal/ingest"
	"aquawatch/internal/scaling"
)

var testFeatures = []string{"water_level", "flow_rate", "temperature"}

func newTestScaler(t *testing.T) *scaling.Scaler {
	t.Helper()
	scaler, err := scaling.NewScaler(&scaling.Params{
		Kind:     scaling.KindStandard,
		Features: testFeatures,
		Mean:     []float64{3, 25, 18},
		Scale:    []float64{2, 10, 5},
	})
	if err != nil {
		t.Fatalf("new scaler: %v", err)
	}
	return scaler
}

// newTestScorer isolates readings whose scaled water level exceeds 0.5.
func newTestScorer(t *testing.T) *anomaly.Scorer {
	t.Helper()
	scorer, err := anomaly.NewScorer(&anomaly.Model{
		Features: testFeatures,
		Trees: []anomaly.Tree{{
			ChildLeft:   []int{1, -1, -1},
			ChildRight:  []int{2, -1, -1},
			Feature:     []int{0, -1, -1},
			Threshold:   []float64{0.5, 0, 0},
			NodeSamples: []int{101, 100, 1},
		}},
		MaxSamples: 100,
		Offset:     -0.56,
	})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	return scorer
}

func newTestForecaster(t *testing.T, size int) *forecast.Forecaster {
	t.Helper()
	weights := make([][]float64, size)
	for i := range weights {
		weights[i] = make([]float64, len(testFeatures))
	}
	weights[size-1][0] = 1
	forecaster, err := forecast.NewForecaster(&forecast.Model{
		Features:   testFeatures,
		Target:     "water_level",
		WindowSize: size,
		Weights:    weights,
		Bias:       0.05,
	}, newTestScaler(t))
	if err != nil {
		t.Fatalf("new forecaster: %v", err)
	}
	return forecaster
}

type stubDispatcher struct {
	events    []dispatch.Event
	delivered bool
}

func (d *stubDispatcher) Dispatch(_ context.Context, event dispatch.Event) dispatch.Outcome {
	d.events = append(d.events, event)
	return dispatch.Outcome{Logged: true, Delivered: d.delivered}
}

func newTestService(t *testing.T, dispatcher Dispatcher, opts ...decision.Option) *Service {
	t.Helper()
	engine, err := decision.NewEngine(opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	service, err := NewService(
		newTestScaler(t),
		newTestScorer(t),
		newTestForecaster(t, 12),
		engine,
		dispatcher,
		time.Hour,
		log.New(io.Discard, "", 0),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func reading(device string, ts time.Time, flow, level, temp float64, status string) ingest.Reading {
	return ingest.Reading{
		DeviceID:    device,
		Timestamp:   ts,
		FlowRate:    flow,
		WaterLevel:  level,
		Temperature: temp,
		Status:      status,
	}
}

func TestProcessExplicitStatusDispatchesAlert(t *testing.T) {
	dispatcher := &stubDispatcher{delivered: true}
	service := newTestService(t, dispatcher)

	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	result, err := service.Process(context.Background(), reading("SN-001", ts, 45.2, 2.8, 23.5, "Leak"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.LeakDetected || !result.AlertSent {
		t.Fatalf("result %+v, want leak detected and alert sent", result)
	}
	if result.Verdict.Reason != decision.ReasonExplicitStatus {
		t.Fatalf("reason %q, want explicit status", result.Verdict.Reason)
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("got %d dispatched events, want 1", len(dispatcher.events))
	}
	event := dispatcher.events[0]
	if event.DeviceID != "SN-001" || !event.Timestamp.Equal(ts) || event.FlowRate != 45.2 {
		t.Fatalf("event fields: %+v", event)
	}
	if event.LeakProbability == nil {
		t.Fatal("event should carry the anomaly probability")
	}
}

func TestProcessAnomalySignalAlone(t *testing.T) {
	dispatcher := &stubDispatcher{}
	// Lowered cutoff so the single-tree test model's probability clears it.
	service := newTestService(t, dispatcher, decision.WithAnomalyCutoff(0.55))

	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	result, err := service.Process(context.Background(), reading("SN-001", ts, 10.0, 7.9, 23.5, ""))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.LeakDetected {
		t.Fatalf("result %+v, want leak by anomaly score", result)
	}
	if result.Verdict.Reason != decision.ReasonAnomalyScore {
		t.Fatalf("reason %q, want anomaly score", result.Verdict.Reason)
	}
	if result.AlertSent {
		t.Fatalf("result %+v, stub dispatcher did not deliver", result)
	}
}

func TestProcessNormalReadingDoesNotDispatch(t *testing.T) {
	dispatcher := &stubDispatcher{}
	service := newTestService(t, dispatcher)

	result, err := service.Process(context.Background(), reading("SN-001", time.Now().UTC(), 10.0, 2.8, 18.0, ""))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.LeakDetected || result.AlertSent {
		t.Fatalf("result %+v, want normal", result)
	}
	if len(dispatcher.events) != 0 {
		t.Fatalf("got %d dispatched events, want 0", len(dispatcher.events))
	}
}

func TestProcessFailsOpenWhenScorerUnavailable(t *testing.T) {
	// A scorer trained on a narrower ordering makes Score fail at call time;
	// the verdict must still come from the remaining signals.
	scorer, err := anomaly.NewScorer(&anomaly.Model{
		Features: []string{"water_level"},
		Trees: []anomaly.Tree{{
			ChildLeft:   []int{-1},
			ChildRight:  []int{-1},
			Feature:     []int{-1},
			Threshold:   []float64{0},
			NodeSamples: []int{10},
		}},
		MaxSamples: 10,
	})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	engine, err := decision.NewEngine()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	dispatcher := &stubDispatcher{}
	service, err := NewService(newTestScaler(t), scorer, newTestForecaster(t, 12), engine, dispatcher, time.Hour, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := service.Process(context.Background(), reading("SN-001", time.Now().UTC(), 50.0, 2.8, 18.0, ""))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.LeakDetected || result.Verdict.Reason != decision.ReasonFlowThreshold {
		t.Fatalf("result %+v, want leak by flow threshold despite scorer failure", result)
	}
	if dispatcher.events[0].LeakProbability != nil {
		t.Fatal("event probability should be absent when scoring failed")
	}
}

func TestForecastAfterWindowFills(t *testing.T) {
	service := newTestService(t, &stubDispatcher{})

	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	var last time.Time
	for i := 0; i < 12; i++ {
		last = base.Add(time.Duration(i) * time.Hour)
		if _, err := service.Process(context.Background(), reading("SN-001", last, 10.0, 2.5+0.01*float64(i), 18.0, "")); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	predictions, err := service.Forecast("SN-001", 24)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(predictions) != 24 {
		t.Fatalf("got %d predictions, want 24", len(predictions))
	}
	for i, p := range predictions {
		want := last.Add(time.Duration(i+1) * time.Hour)
		if !p.Timestamp.Equal(want) {
			t.Fatalf("prediction %d timestamp %v, want %v", i, p.Timestamp, want)
		}
		if i > 0 && !p.Timestamp.After(predictions[i-1].Timestamp) {
			t.Fatalf("timestamps not strictly increasing at %d", i)
		}
	}

	// Forecasting must not consume the observed window.
	again, err := service.Forecast("SN-001", 24)
	if err != nil {
		t.Fatalf("second forecast: %v", err)
	}
	for i := range predictions {
		if again[i].Value != predictions[i].Value {
			t.Fatalf("forecast drifted on repeat at step %d", i)
		}
	}
}

func TestForecastErrors(t *testing.T) {
	service := newTestService(t, &stubDispatcher{})

	if _, err := service.Forecast("SN-404", 4); err != ErrUnknownDevice {
		t.Fatalf("got %v, want ErrUnknownDevice", err)
	}

	if _, err := service.Process(context.Background(), reading("SN-001", time.Now().UTC(), 10, 2.8, 18, "")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := service.Forecast("SN-001", 4); err != ErrWindowNotReady {
		t.Fatalf("got %v, want ErrWindowNotReady", err)
	}
	if _, err := service.Forecast("SN-001", 0); err == nil {
		t.Fatal("expected error for non-positive steps")
	}
}

func TestProcessManyDevicesConcurrently(t *testing.T) {
	service := newTestService(t, &stubDispatcher{delivered: true})
	done := make(chan error, 4)
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 4; d++ {
		device := fmt.Sprintf("SN-%03d", d)
		go func() {
			for i := 0; i < 20; i++ {
				ts := base.Add(time.Duration(i) * time.Minute)
				if _, err := service.Process(context.Background(), reading(device, ts, 10, 2.8, 18, "")); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
	}
	for d := 0; d < 4; d++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent process: %v", err)
		}
	}
	for d := 0; d < 4; d++ {
		device := fmt.Sprintf("SN-%03d", d)
		if _, err := service.Forecast(device, 6); err != nil {
			t.Fatalf("forecast %s: %v", device, err)
		}
	}
}

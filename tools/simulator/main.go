// Command simulator replays sensor readings from a CSV file against the
// ingest endpoint, one reading per interval.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	csvPath  string
	url      string
	deviceID string
	interval time.Duration
	loop     bool
}

type reading struct {
	DeviceID    string  `json:"device_id"`
	Timestamp   string  `json:"timestamp,omitempty"`
	FlowRate    float64 `json:"flow_rate"`
	WaterLevel  float64 `json:"water_level"`
	Temperature float64 `json:"temperature"`
	Status      string  `json:"status,omitempty"`
}

func main() {
	cfg := parseConfig()
	if cfg.csvPath == "" {
		log.Fatal("-csv is required")
	}

	readings, err := loadReadings(cfg.csvPath, cfg.deviceID)
	if err != nil {
		log.Fatalf("load readings: %v", err)
	}
	if len(readings) == 0 {
		log.Fatal("no readings in csv")
	}
	log.Printf("replaying %d readings to %s every %s", len(readings), cfg.url, cfg.interval)

	client := &http.Client{Timeout: 10 * time.Second}
	for {
		for i, r := range readings {
			if err := post(client, cfg.url, r); err != nil {
				log.Printf("reading %d: %v", i, err)
			}
			time.Sleep(cfg.interval)
		}
		if !cfg.loop {
			return
		}
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.csvPath, "csv", "", "path to readings csv")
	flag.StringVar(&cfg.url, "url", "http://localhost:8080/ingest", "ingest endpoint")
	flag.StringVar(&cfg.deviceID, "device", "", "override device id for every reading")
	flag.DurationVar(&cfg.interval, "interval", 2*time.Second, "delay between readings")
	flag.BoolVar(&cfg.loop, "loop", false, "restart from the top after the last reading")
	flag.Parse()
	return cfg
}

// loadReadings accepts any column order; unknown columns are ignored.
func loadReadings(path, deviceOverride string) ([]reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"flow_rate", "water_level", "temperature"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("csv missing column %q", required)
		}
	}

	var readings []reading
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		item := reading{
			DeviceID:  field(row, index, "device_id"),
			Timestamp: field(row, index, "timestamp"),
			Status:    field(row, index, "status"),
		}
		if deviceOverride != "" {
			item.DeviceID = deviceOverride
		}
		if item.DeviceID == "" {
			item.DeviceID = "SIM-001"
		}
		if item.FlowRate, err = floatField(row, index, "flow_rate"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if item.WaterLevel, err = floatField(row, index, "water_level"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if item.Temperature, err = floatField(row, index, "temperature"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		readings = append(readings, item)
	}
	return readings, nil
}

func field(row []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func floatField(row []string, index map[string]int, name string) (float64, error) {
	raw := field(row, index, name)
	if raw == "" {
		return 0, fmt.Errorf("empty %s", name)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", name, raw)
	}
	return value, nil
}

func post(client *http.Client, url string, r reading) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	log.Printf("device %s flow %.2f -> %s", r.DeviceID, r.FlowRate, strings.TrimSpace(string(payload)))
	return nil
}

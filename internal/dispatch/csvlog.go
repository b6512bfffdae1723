package dispatch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// logColumns is the audit log schema for the running version, in order.
// Migrations append new optional columns to the right.
var logColumns = []string{"timestamp", "device_id", "flow_rate", "water_level", "temperature", "status"}

// emptyMarker backfills columns that did not exist when a row was written.
const emptyMarker = ""

// Record is one audit log row. Fields stay strings: rows written before a
// schema widening keep the empty marker in columns they never had.
type Record struct {
	Timestamp   string `json:"timestamp"`
	DeviceID    string `json:"device_id"`
	FlowRate    string `json:"flow_rate"`
	WaterLevel  string `json:"water_level"`
	Temperature string `json:"temperature"`
	Status      string `json:"status"`
}

// CSVLog is the append-only durable audit trail. Appends are serialized; rows
// are keyed by (device id, timestamp) and never rewritten except to backfill
// newly added columns during a schema widening.
type CSVLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
	seen map[string]struct{}
}

// OpenCSVLog opens (or creates) the audit log at path. An existing file with
// an older, narrower header is migrated once: every historical row is kept,
// its values preserved, and the new columns backfilled with the empty marker.
func OpenCSVLog(path string) (*CSVLog, error) {
	if path == "" {
		return nil, errors.New("alert log: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("alert log: create dir: %w", err)
		}
	}

	log := &CSVLog{path: path, seen: make(map[string]struct{})}
	if err := log.prepare(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("alert log: open for append: %w", err)
	}
	log.file = file
	log.w = csv.NewWriter(file)
	return log, nil
}

// Append writes one event as an audit row and records its dedup key.
func (l *CSVLog) Append(event Event) error {
	if l == nil || l.w == nil {
		return errors.New("alert log: not open")
	}
	if err := event.Validate(); err != nil {
		return err
	}
	row := []string{
		event.Timestamp.UTC().Format(time.RFC3339),
		event.DeviceID,
		formatFloat(event.FlowRate),
		formatFloat(event.WaterLevel),
		formatFloat(event.Temperature),
		event.Status,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("alert log: write row: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("alert log: flush: %w", err)
	}
	l.seen[event.Key()] = struct{}{}
	return nil
}

// Seen reports whether an event with this dedup key was already logged,
// including rows found in the file when the log was opened.
func (l *CSVLog) Seen(deviceID string, ts time.Time) bool {
	if l == nil {
		return false
	}
	key := deviceID + "|" + ts.UTC().Format(time.RFC3339)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	return ok
}

// ReadAll returns every audit row, oldest first.
func (l *CSVLog) ReadAll() ([]Record, error) {
	if l == nil {
		return nil, errors.New("alert log: not open")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := readRows(l.path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, Record{
			Timestamp:   column(row, 0),
			DeviceID:    column(row, 1),
			FlowRate:    column(row, 2),
			WaterLevel:  column(row, 3),
			Temperature: column(row, 4),
			Status:      column(row, 5),
		})
	}
	return records, nil
}

// Close flushes and closes the underlying file.
func (l *CSVLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.file.Close()
}

// prepare creates the file with the current header, or migrates an existing
// one, and loads the dedup keyset.
func (l *CSVLog) prepare() error {
	rows, err := readRows(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return writeAll(l.path, [][]string{logColumns})
	}
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return writeAll(l.path, [][]string{logColumns})
	}

	header := rows[0]
	if !equalHeader(header, logColumns) {
		migrated, err := migrateRows(header, rows[1:])
		if err != nil {
			return err
		}
		if err := writeAll(l.path, append([][]string{logColumns}, migrated...)); err != nil {
			return err
		}
		rows = append([][]string{logColumns}, migrated...)
	}

	for _, row := range rows[1:] {
		if len(row) >= 2 {
			l.seen[row[1]+"|"+row[0]] = struct{}{}
		}
	}
	return nil
}

// migrateRows remaps rows written under an older header onto the current
// schema. Every old column must still exist in the current schema; columns the
// old schema lacked are backfilled with the empty marker.
func migrateRows(oldHeader []string, rows [][]string) ([][]string, error) {
	indexOf := make(map[string]int, len(logColumns))
	for i, name := range logColumns {
		indexOf[name] = i
	}
	mapping := make([]int, len(oldHeader))
	for i, name := range oldHeader {
		idx, ok := indexOf[name]
		if !ok {
			return nil, fmt.Errorf("alert log: cannot migrate unknown column %q", name)
		}
		mapping[i] = idx
	}

	migrated := make([][]string, 0, len(rows))
	for _, row := range rows {
		out := make([]string, len(logColumns))
		for i := range out {
			out[i] = emptyMarker
		}
		for i, v := range row {
			if i < len(mapping) {
				out[mapping[i]] = v
			}
		}
		migrated = append(migrated, out)
	}
	return migrated, nil
}

func readRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("alert log: read %s: %w", filepath.Base(path), err)
		}
		rows = append(rows, row)
	}
}

// writeAll rewrites the file atomically via a temp file rename.
func writeAll(path string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("alert log: temp file: %w", err)
	}
	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("alert log: rewrite: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func column(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return emptyMarker
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

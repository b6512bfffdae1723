// Package archive persists leak alerts to Postgres. The archive is a
// secondary sink behind the CSV alert log: it is enabled only when a
// database URL is configured and its failures never block dispatch.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"aquawatch/internal/dispatch"
)

// Alert is one archived leak alert row.
type Alert struct {
	DeviceID    string
	Timestamp   time.Time
	FlowRate    float64
	WaterLevel  float64
	Temperature float64
	Status      string
	Probability sql.NullFloat64
	CreatedAt   time.Time
}

// Repository is a Postgres repository for leak alerts.
type Repository struct {
	db *sql.DB
}

// Open connects to Postgres via the pgx stdlib driver and ensures the
// alerts table exists.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("archive: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	repo := &Repository{db: db}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository wraps an existing database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS leak_alerts (
	id BIGSERIAL PRIMARY KEY,
	device_id TEXT NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	flow_rate DOUBLE PRECISION NOT NULL,
	water_level DOUBLE PRECISION NOT NULL,
	temperature DOUBLE PRECISION NOT NULL,
	status TEXT NOT NULL,
	probability DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (device_id, observed_at)
)`)
	return err
}

// Archive inserts one alert. Re-archiving the same device and observation
// time is a no-op, mirroring the alert log's dedup key.
func (r *Repository) Archive(ctx context.Context, event dispatch.Event) error {
	if r == nil || r.db == nil {
		return errors.New("archive: nil db")
	}
	if err := event.Validate(); err != nil {
		return err
	}
	probability := sql.NullFloat64{}
	if event.LeakProbability != nil {
		probability = sql.NullFloat64{Float64: *event.LeakProbability, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO leak_alerts (
	device_id, observed_at, flow_rate, water_level, temperature, status, probability
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (device_id, observed_at) DO NOTHING`,
		event.DeviceID, event.Timestamp.UTC(), event.FlowRate, event.WaterLevel,
		event.Temperature, event.Status, probability)
	return err
}

// ListByDevice returns archived alerts for one device, newest first.
func (r *Repository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("archive: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("archive: empty device id")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT device_id, observed_at, flow_rate, water_level, temperature, status, probability, created_at
FROM leak_alerts
WHERE device_id = $1
ORDER BY observed_at DESC
LIMIT $2`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var alert Alert
		if err := rows.Scan(
			&alert.DeviceID,
			&alert.Timestamp,
			&alert.FlowRate,
			&alert.WaterLevel,
			&alert.Temperature,
			&alert.Status,
			&alert.Probability,
			&alert.CreatedAt,
		); err != nil {
			return nil, err
		}
		alert.Timestamp = alert.Timestamp.UTC()
		alert.CreatedAt = alert.CreatedAt.UTC()
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// Close releases the underlying database handle.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"carewatch/internal/types"
)

// readingColumns is the select list shared by every query that hydrates a
// full ReadingRecord. Order matches scanReadingFromRows.
const readingColumns = `id, device_id, recorded_at, temperature, motion_level,
        sound_level, hour_of_day, is_night, motion_trend,
        activity_class, confidence, confidence_scores, risk_level, created_at`

// ReadingRepository provides data access for the sensor_readings table:
// ingestion inserts, the latest-motion lookup backing trend derivation, and
// recent-history listings for the dashboard.
type ReadingRepository struct {
	db DBTX
}

// NewReadingRepository creates a ReadingRepository backed by the given
// database connection (pool or transaction).
func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Insert stores one reading together with its classification. The caller
// sets the ID; CreatedAt falls back to NOW() when zero. Unclassified
// readings store NULL for the classification columns.
func (r *ReadingRepository) Insert(ctx context.Context, rec *types.ReadingRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sensor_readings
		 (id, device_id, recorded_at, temperature, motion_level, sound_level,
		  hour_of_day, is_night, motion_trend, activity_class, confidence,
		  confidence_scores, risk_level, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, COALESCE($14, NOW()))`,
		rec.ID,
		nilIfEmpty(rec.DeviceID),
		rec.Timestamp,
		rec.Temperature,
		rec.MotionLevel,
		rec.SoundLevel,
		rec.HourOfDay,
		rec.IsNight,
		rec.MotionTrend,
		nilIfEmpty(string(rec.ActivityClass)),
		rec.Confidence,
		rec.ConfidenceScores,
		nilIfEmpty(string(rec.RiskLevel)),
		nilIfZeroTime(rec.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert sensor reading", err)
	}
	return nil
}

// LatestMotionLevel returns the motion level of the most recent reading
// stored for the device. The boolean is false when the device has no
// history, which is not an error.
func (r *ReadingRepository) LatestMotionLevel(ctx context.Context, deviceID string) (float64, bool, error) {
	var motion float64
	err := r.db.QueryRow(ctx,
		`SELECT motion_level FROM sensor_readings
		 WHERE device_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT 1`,
		deviceID,
	).Scan(&motion)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, types.NewAppError(types.ErrCodeInternalDB, "failed to read latest motion level", err)
	}
	return motion, true, nil
}

// Recent lists the newest readings, most recent first. An empty deviceID
// lists across all devices. Limit defaults to 20 when not positive.
func (r *ReadingRepository) Recent(ctx context.Context, deviceID string, limit int) ([]*types.ReadingRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + readingColumns + `
		 FROM sensor_readings
		 ORDER BY recorded_at DESC
		 LIMIT $1`
	args := []any{limit}
	if deviceID != "" {
		query = `SELECT ` + readingColumns + `
		 FROM sensor_readings
		 WHERE device_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`
		args = []any{deviceID, limit}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list recent readings", err)
	}
	defer rows.Close()

	var results []*types.ReadingRecord
	for rows.Next() {
		rec, scanErr := scanReadingFromRows(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reading row", scanErr)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating reading rows", err)
	}
	return results, nil
}

// scanReadingFromRows scans a single sensor_readings row. Nullable columns
// are scanned through pointer types; ConfidenceScores decodes its JSONB
// column via its sql.Scanner implementation.
func scanReadingFromRows(rows pgx.Rows) (*types.ReadingRecord, error) {
	var (
		rec           types.ReadingRecord
		deviceID      *string
		activityClass *string
		riskLevel     *string
	)

	err := rows.Scan(
		&rec.ID,
		&deviceID,
		&rec.Timestamp,
		&rec.Temperature,
		&rec.MotionLevel,
		&rec.SoundLevel,
		&rec.HourOfDay,
		&rec.IsNight,
		&rec.MotionTrend,
		&activityClass,
		&rec.Confidence,
		&rec.ConfidenceScores,
		&riskLevel,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deviceID != nil {
		rec.DeviceID = *deviceID
	}
	if activityClass != nil {
		rec.ActivityClass = types.ActivityClass(*activityClass)
	}
	if riskLevel != nil {
		rec.RiskLevel = types.RiskLevel(*riskLevel)
	}
	return &rec, nil
}

// nilIfEmpty returns nil if the string is empty, otherwise a pointer to it.
// Used to store NULL for optional text columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZeroTime returns nil if the time is zero, otherwise a pointer to the
// time. Used to let the DB default (NOW()) apply when no time is set.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

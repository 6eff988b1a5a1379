package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"classattend/internal/classroom"
)

// Repository persists daily records in Postgres, one row per class day with
// the periods as JSONB.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetRecord(ctx context.Context, classID string, day time.Time) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT class_id, day, periods, updated_at
		FROM attendance_records WHERE class_id = $1 AND day = $2
	`, classID, classroom.Day(day))
	return scanRecord(row)
}

func (r *Repository) ListRecords(ctx context.Context, classID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT class_id, day, periods, updated_at
		FROM attendance_records WHERE class_id = $1
		ORDER BY day
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateRecord inserts an empty row when the day has none, then locks it with
// SELECT ... FOR UPDATE so concurrent markers of the same day serialize. The
// inserted row is rolled back when fn fails.
func (r *Repository) UpdateRecord(ctx context.Context, classID string, day time.Time, fn func(*Record, bool) error) (Record, error) {
	day = classroom.Day(day)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (class_id, day, periods)
		VALUES ($1, $2, '[]')
		ON CONFLICT (class_id, day) DO NOTHING
	`, classID, day)
	if err != nil {
		return Record{}, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return Record{}, err
	}

	rec, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT class_id, day, periods, updated_at
		FROM attendance_records WHERE class_id = $1 AND day = $2
		FOR UPDATE
	`, classID, day))
	if err != nil {
		return Record{}, err
	}
	if err := fn(&rec, inserted == 0); err != nil {
		return Record{}, err
	}
	if rec.Periods == nil {
		rec.Periods = []Period{}
	}
	periods, err := json.Marshal(rec.Periods)
	if err != nil {
		return Record{}, err
	}
	if err := tx.QueryRowContext(ctx, `
		UPDATE attendance_records SET periods = $3, updated_at = NOW()
		WHERE class_id = $1 AND day = $2
		RETURNING updated_at
	`, classID, day, periods).Scan(&rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec     Record
		periods []byte
	)
	if err := row.Scan(&rec.ClassID, &rec.Date, &periods, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.Date = classroom.Day(rec.Date)
	if err := json.Unmarshal(periods, &rec.Periods); err != nil {
		return Record{}, err
	}
	return rec, nil
}

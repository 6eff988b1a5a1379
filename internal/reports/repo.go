package reports

import (
	"context"
	"database/sql"
	"errors"

	"classattend/internal/classroom"
)

// PostgresRepository persists reports and requests in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const reportColumns = `id, class_id, student_roll, day, subject_id, subject_name, description, status, admin_response, created_at, updated_at, resolved_at`

func (r *PostgresRepository) CreateReport(ctx context.Context, rep Report) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO correction_reports (`+reportColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, rep.ID, rep.ClassID, rep.StudentRoll, rep.Date, rep.SubjectID, rep.SubjectName, rep.Description,
		rep.Status, rep.AdminResponse, rep.CreatedAt, rep.UpdatedAt, rep.ResolvedAt)
	return err
}

func (r *PostgresRepository) GetReport(ctx context.Context, id string) (Report, error) {
	return scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM correction_reports WHERE id = $1`, id))
}

func (r *PostgresRepository) ListReports(ctx context.Context, classID string) ([]Report, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM correction_reports
		WHERE class_id = $1 ORDER BY created_at DESC
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateReport(ctx context.Context, id string, fn func(*Report) error) (Report, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Report{}, err
	}
	defer tx.Rollback()

	rep, err := scanReport(tx.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM correction_reports WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Report{}, err
	}
	if err := fn(&rep); err != nil {
		return Report{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE correction_reports
		SET description = $2, status = $3, admin_response = $4, updated_at = $5, resolved_at = $6
		WHERE id = $1
	`, rep.ID, rep.Description, rep.Status, rep.AdminResponse, rep.UpdatedAt, rep.ResolvedAt); err != nil {
		return Report{}, err
	}
	return rep, tx.Commit()
}

func (r *PostgresRepository) DeleteReport(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM correction_reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const requestColumns = `id, class_id, subject_id, day, roll_number, reason, status, decided_by, created_at`

func (r *PostgresRepository) CreateRequest(ctx context.Context, req ModificationRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO modification_requests (`+requestColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, req.ID, req.ClassID, req.SubjectID, req.Date, req.RollNumber, req.Reason, req.Status, req.DecidedBy, req.CreatedAt)
	return err
}

func (r *PostgresRepository) GetRequest(ctx context.Context, id string) (ModificationRequest, error) {
	return scanRequest(r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM modification_requests WHERE id = $1`, id))
}

func (r *PostgresRepository) ListRequests(ctx context.Context, classID string) ([]ModificationRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM modification_requests
		WHERE class_id = $1 ORDER BY created_at
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ModificationRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// UpdateRequest holds a row lock on the request while fn runs.
func (r *PostgresRepository) UpdateRequest(ctx context.Context, id string, fn func(*ModificationRequest) error) (ModificationRequest, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ModificationRequest{}, err
	}
	defer tx.Rollback()

	req, err := scanRequest(tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM modification_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return ModificationRequest{}, err
	}
	if err := fn(&req); err != nil {
		return ModificationRequest{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE modification_requests SET status = $2, decided_by = $3, reason = $4 WHERE id = $1
	`, req.ID, req.Status, req.DecidedBy, req.Reason); err != nil {
		return ModificationRequest{}, err
	}
	return req, tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (Report, error) {
	var (
		rep      Report
		resolved sql.NullTime
	)
	err := row.Scan(&rep.ID, &rep.ClassID, &rep.StudentRoll, &rep.Date, &rep.SubjectID, &rep.SubjectName,
		&rep.Description, &rep.Status, &rep.AdminResponse, &rep.CreatedAt, &rep.UpdatedAt, &resolved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	rep.Date = classroom.Day(rep.Date)
	if resolved.Valid {
		t := resolved.Time
		rep.ResolvedAt = &t
	}
	return rep, nil
}

func scanRequest(row scanner) (ModificationRequest, error) {
	var req ModificationRequest
	err := row.Scan(&req.ID, &req.ClassID, &req.SubjectID, &req.Date, &req.RollNumber, &req.Reason, &req.Status, &req.DecidedBy, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ModificationRequest{}, ErrNotFound
		}
		return ModificationRequest{}, err
	}
	req.Date = classroom.Day(req.Date)
	return req, nil
}

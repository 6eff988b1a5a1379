package classroom

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository persists classroom data in Postgres. Roster, subjects
// and timetable are stored as JSONB columns of the class row.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const classColumns = `id, class_name, admin_pin, roll_numbers, subjects, timetable, min_attendance, created_at`

func (r *PostgresRepository) CreateClass(ctx context.Context, c Class) error {
	rolls, subjects, tt, err := encodeClass(c)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO classes (`+classColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, c.ID, c.Name, c.AdminPin, rolls, subjects, tt, c.MinAttendance, c.CreatedAt)
	return mapErr(err)
}

func (r *PostgresRepository) GetClass(ctx context.Context, id string) (Class, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id)
	return scanClass(row)
}

func (r *PostgresRepository) FindClassByName(ctx context.Context, name string) (Class, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE lower(class_name) = lower($1)`, name)
	return scanClass(row)
}

func (r *PostgresRepository) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+classColumns+` FROM classes ORDER BY class_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateClass locks the class row for the duration of fn.
func (r *PostgresRepository) UpdateClass(ctx context.Context, id string, fn func(*Class) error) (Class, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Class{}, err
	}
	defer tx.Rollback()

	c, err := scanClass(tx.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Class{}, err
	}
	if err := fn(&c); err != nil {
		return Class{}, err
	}
	rolls, subjects, tt, err := encodeClass(c)
	if err != nil {
		return Class{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE classes
		SET class_name = $2, roll_numbers = $3, subjects = $4, timetable = $5, min_attendance = $6, updated_at = NOW()
		WHERE id = $1
	`, c.ID, c.Name, rolls, subjects, tt, c.MinAttendance); err != nil {
		return Class{}, mapErr(err)
	}
	return c, tx.Commit()
}

func (r *PostgresRepository) CreateTeacher(ctx context.Context, t Teacher) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teachers (id, name, email, teacher_code, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, t.ID, t.Name, t.Email, t.Code, t.CreatedAt)
	return mapErr(err)
}

func (r *PostgresRepository) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	return r.scanTeacher(r.db.QueryRowContext(ctx, `SELECT id, name, email, teacher_code, created_at FROM teachers WHERE id = $1`, id))
}

func (r *PostgresRepository) FindTeacherByEmail(ctx context.Context, email string) (Teacher, error) {
	return r.scanTeacher(r.db.QueryRowContext(ctx, `SELECT id, name, email, teacher_code, created_at FROM teachers WHERE email = $1`, email))
}

func (r *PostgresRepository) scanTeacher(row *sql.Row) (Teacher, error) {
	var t Teacher
	if err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Code, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Teacher{}, ErrNotFound
		}
		return Teacher{}, err
	}
	return t, nil
}

func (r *PostgresRepository) AddSpecialDate(ctx context.Context, d SpecialDate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO special_dates (id, class_id, day, kind, title)
		VALUES ($1,$2,$3,$4,$5)
	`, d.ID, d.ClassID, d.Date, d.Type, d.Title)
	return mapErr(err)
}

func (r *PostgresRepository) ListSpecialDates(ctx context.Context, classID string) ([]SpecialDate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, class_id, day, kind, title FROM special_dates WHERE class_id = $1 ORDER BY day
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SpecialDate
	for rows.Next() {
		var d SpecialDate
		if err := rows.Scan(&d.ID, &d.ClassID, &d.Date, &d.Type, &d.Title); err != nil {
			return nil, err
		}
		d.Date = Day(d.Date)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) DeleteSpecialDate(ctx context.Context, classID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM special_dates WHERE id = $1 AND class_id = $2`, id, classID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClass(row scanner) (Class, error) {
	var (
		c                    Class
		rolls, subjects, tts []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.AdminPin, &rolls, &subjects, &tts, &c.MinAttendance, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Class{}, ErrNotFound
		}
		return Class{}, err
	}
	if err := json.Unmarshal(rolls, &c.RollNumbers); err != nil {
		return Class{}, err
	}
	if err := json.Unmarshal(subjects, &c.Subjects); err != nil {
		return Class{}, err
	}
	if len(tts) > 0 {
		if err := json.Unmarshal(tts, &c.Timetable); err != nil {
			return Class{}, err
		}
	}
	return c, nil
}

func encodeClass(c Class) (rolls, subjects, tt []byte, err error) {
	if rolls, err = json.Marshal(c.RollNumbers); err != nil {
		return
	}
	if subjects, err = json.Marshal(c.Subjects); err != nil {
		return
	}
	if c.Timetable == nil {
		c.Timetable = Timetable{}
	}
	tt, err = json.Marshal(c.Timetable)
	return
}

// mapErr turns unique violations into ErrConflict.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func sortClasses(cs []Class) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/attendo/internal/config"
	"github.com/your-org/attendo/internal/models"
)

// ErrDuplicate is returned when a unique constraint is violated
// (duplicate admin email, employee username, or attendance mark).
var ErrDuplicate = errors.New("already exists")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Admins ---

func (s *PostgresStore) CreateAdmin(ctx context.Context, a *models.Admin) error {
	a.ID = uuid.New()
	a.Role = models.RoleAdmin
	err := s.pool.QueryRow(ctx,
		`INSERT INTO admins (id, organization_name, email, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`,
		a.ID, a.OrganizationName, a.Email, a.PasswordHash, a.Role,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	a := &models.Admin{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_name, email, password_hash, role, email_verified, created_at, updated_at
		 FROM admins WHERE email = $1`, email,
	).Scan(&a.ID, &a.OrganizationName, &a.Email, &a.PasswordHash, &a.Role, &a.EmailVerified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetAdmin(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	a := &models.Admin{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, organization_name, email, password_hash, role, email_verified, created_at, updated_at
		 FROM admins WHERE id = $1`, id,
	).Scan(&a.ID, &a.OrganizationName, &a.Email, &a.PasswordHash, &a.Role, &a.EmailVerified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) MarkAdminEmailVerified(ctx context.Context, email string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE admins SET email_verified = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("verify admin email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("admin not found")
	}
	return nil
}

// --- Employees ---

func (s *PostgresStore) CreateEmployee(ctx context.Context, e *models.Employee) error {
	e.ID = uuid.New()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO employees (id, name, username, email, profile_picture_key, position, salary, address, phone_number, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at, updated_at`,
		e.ID, e.Name, e.Username, e.Email, e.ProfilePictureKey, e.Position, e.Salary, e.Address, e.PhoneNumber, e.PasswordHash,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, username, email, profile_picture_key, position, salary, address, phone_number, password_hash, present_days, absent_days, created_at, updated_at`

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	e := &models.Employee{}
	err := row.Scan(&e.ID, &e.Name, &e.Username, &e.Email, &e.ProfilePictureKey,
		&e.Position, &e.Salary, &e.Address, &e.PhoneNumber, &e.PasswordHash,
		&e.PresentDays, &e.AbsentDays, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan employee: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	return scanEmployee(s.pool.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
}

func (s *PostgresStore) GetEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error) {
	return scanEmployee(s.pool.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE username = $1`, username))
}

func (s *PostgresStore) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *e)
	}
	return employees, nil
}

// DeleteEmployee removes the employee row together with any stored face
// credential and attendance history.
func (s *PostgresStore) DeleteEmployee(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var username string
	err = tx.QueryRow(ctx, `DELETE FROM employees WHERE id = $1 RETURNING username`, id).Scan(&username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("employee not found")
		}
		return fmt.Errorf("delete employee: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM face_credentials WHERE identity = $1`, username); err != nil {
		return fmt.Errorf("delete face credential: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) UpdateEmployeePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE employees SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("employee not found")
	}
	return nil
}

// --- Attendance ---

// MarkAttendance records one attendance row per employee per day and bumps
// the present-day counter. Returns ErrDuplicate if today is already marked.
func (s *PostgresStore) MarkAttendance(ctx context.Context, employeeID uuid.UUID, day time.Time, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rec := &models.AttendanceRecord{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		Date:       day,
		Status:     status,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO attendance_records (id, employee_id, date, status)
		 VALUES ($1, $2, $3, $4) RETURNING marked_at`,
		rec.ID, rec.EmployeeID, rec.Date, rec.Status,
	).Scan(&rec.MarkedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE employees SET present_days = present_days + 1 WHERE id = $1`, employeeID); err != nil {
		return nil, fmt.Errorf("bump present days: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListAttendance(ctx context.Context, employeeID uuid.UUID, limit int) ([]models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, employee_id, date, status, marked_at FROM attendance_records
		 WHERE employee_id = $1 ORDER BY date DESC LIMIT $2`, employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var r models.AttendanceRecord
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Date, &r.Status, &r.MarkedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}

// ReconcileAbsences bumps absent_days for every employee with no
// attendance record on the given day. Returns the number of employees
// marked absent. Safe to re-run: a day is only reconciled once.
func (s *PostgresStore) ReconcileAbsences(ctx context.Context, day time.Time) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO absence_reconciliations (day) VALUES ($1)`, day)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, nil // already reconciled
		}
		return 0, fmt.Errorf("record reconciliation: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE employees SET absent_days = absent_days + 1
		 WHERE created_at < $1
		   AND id NOT IN (SELECT employee_id FROM attendance_records WHERE date = $1)`, day)
	if err != nil {
		return 0, fmt.Errorf("reconcile absences: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Face credentials ---

// UpsertCredential stores or overwrites the single embedding for an
// identity. Last write wins.
func (s *PostgresStore) UpsertCredential(ctx context.Context, identity string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO face_credentials (identity, embedding, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (identity) DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()`,
		identity, vec)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// LookupCredential returns the stored embedding for an identity, or
// (nil, nil) when none exists.
func (s *PostgresStore) LookupCredential(ctx context.Context, identity string) ([]float32, error) {
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT embedding FROM face_credentials WHERE identity = $1`, identity,
	).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}
	return vec.Slice(), nil
}

func (s *PostgresStore) DeleteCredential(ctx context.Context, identity string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM face_credentials WHERE identity = $1`, identity)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// --- Face events ---

func (s *PostgresStore) CreateFaceEvent(ctx context.Context, ev *models.FaceEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO face_events (id, type, identity, match, confidence, distance, snapshot_key, occurred_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.Type, ev.Identity, ev.Match, ev.Confidence, ev.Distance, ev.SnapshotKey, ev.OccurredAt, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create face event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFaceEvents(ctx context.Context, identity string, limit int) ([]models.FaceEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT id, type, identity, match, confidence, distance, snapshot_key, occurred_at, created_at
	          FROM face_events`
	args := []interface{}{}
	if identity != "" {
		query += ` WHERE identity = $1 ORDER BY occurred_at DESC LIMIT $2`
		args = append(args, identity, limit)
	} else {
		query += ` ORDER BY occurred_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list face events: %w", err)
	}
	defer rows.Close()

	var events []models.FaceEvent
	for rows.Next() {
		var ev models.FaceEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Identity, &ev.Match, &ev.Confidence,
			&ev.Distance, &ev.SnapshotKey, &ev.OccurredAt, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

package cases

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const caseColumns = `id, case_number, session_id, patient_contact, details, status, feedback, created_at, updated_at`

func (r *repoPG) scanCase(row pgx.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.CaseNumber, &c.SessionID, &c.PatientContact,
		&c.Details, &c.Status, &c.Feedback, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Case) error {
	c.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cases (id, case_number, session_id, patient_contact, details, status, feedback)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.CaseNumber, c.SessionID, c.PatientContact, c.Details, c.Status, c.Feedback,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// Two unique constraints can fire here and they mean different
		// things: the (session_id, patient_contact) index marks a repeat
		// submission, while the case_number key is a numbering collision
		// with some other session.
		if pgErr.ConstraintName == "idx_cases_session_contact" {
			return ErrDuplicate
		}
		return ErrNumberTaken
	}
	return err
}

func (r *repoPG) GetByNumber(ctx context.Context, caseNumber string) (*Case, error) {
	return r.scanCase(r.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE case_number = $1`, caseNumber))
}

func (r *repoPG) FindBySessionContact(ctx context.Context, sessionID, patientContact string) (*Case, error) {
	return r.scanCase(r.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE session_id = $1 AND patient_contact = $2`,
		sessionID, patientContact))
}

func (r *repoPG) MaxNumberForYear(ctx context.Context, year int) (int, error) {
	// The regexp excludes legacy case numbers with non-numeric suffixes;
	// substring returns NULL for those and MAX skips them.
	var max int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX((substring(case_number FROM '^CASE-\d{4}-(\d+)$'))::int), 0)
		FROM cases
		WHERE case_number LIKE 'CASE-' || $1::text || '-%'`,
		year,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max case number lookup: %w", err)
	}
	return max, nil
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Case, int, error) {
	where := ""
	args := []interface{}{limit, offset}
	if status != "" {
		where = " WHERE status = $3"
		args = append(args, status)
	}

	var total int
	countArgs := args[2:]
	countWhere := ""
	if status != "" {
		countWhere = " WHERE status = $1"
	}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cases`+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+caseColumns+` FROM cases`+where+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Case
	for rows.Next() {
		var c Case
		if err := rows.Scan(&c.ID, &c.CaseNumber, &c.SessionID, &c.PatientContact,
			&c.Details, &c.Status, &c.Feedback, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &c)
	}
	return out, total, rows.Err()
}

func (r *repoPG) UpdateReview(ctx context.Context, caseNumber, status, feedback string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cases SET status = $2, feedback = $3, updated_at = NOW()
		WHERE case_number = $1`,
		caseNumber, status, feedback,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

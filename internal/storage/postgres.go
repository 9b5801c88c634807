package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/stockdesk/pkg/models"
)

// PostgresBackend is a Backend backed by PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pgxpool connection and returns a ready backend.
func NewPostgresBackend(ctx context.Context, connStr string) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

func (p *PostgresBackend) Close() {
	p.pool.Close()
}

// mapErr converts driver errors to storage sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

func requireRow(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Users ---

const userColumns = `id, email, first_name, last_name, role, password_hash, credits, expires_at, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &role, &u.PasswordHash, &u.Credits, &u.ExpiresAt, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (p *PostgresBackend) CreateUser(ctx context.Context, u *models.User) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.FirstName, u.LastName, string(u.Role), u.PasswordHash, u.Credits, u.ExpiresAt, u.CreatedAt,
	)
	return mapErr(err)
}

func (p *PostgresBackend) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *PostgresBackend) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (p *PostgresBackend) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PostgresBackend) SetUserCredits(ctx context.Context, id string, credits int, expiresAt *time.Time) error {
	return requireRow(p.pool.Exec(ctx,
		`UPDATE users SET credits = $2, expires_at = $3 WHERE id = $1`, id, credits, expiresAt))
}

func (p *PostgresBackend) AdjustCredits(ctx context.Context, id string, delta int) (int, error) {
	var credits int
	err := p.pool.QueryRow(ctx,
		`UPDATE users SET credits = credits + $2 WHERE id = $1 AND credits + $2 >= 0 RETURNING credits`,
		id, delta,
	).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the user is missing or the balance is too low.
		if _, getErr := p.GetUserByID(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, err
	}
	return credits, nil
}

// --- Access tokens ---

func (p *PostgresBackend) WriteAccessToken(ctx context.Context, t *models.AccessToken) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO access_tokens (token_hash, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		t.Hash, t.UserID, t.CreatedAt, t.ExpiresAt,
	)
	return mapErr(err)
}

func (p *PostgresBackend) GetAccessToken(ctx context.Context, hash string) (*models.AccessToken, error) {
	var t models.AccessToken
	err := p.pool.QueryRow(ctx,
		`SELECT token_hash, user_id, created_at, expires_at, revoked_at FROM access_tokens WHERE token_hash = $1`,
		hash,
	).Scan(&t.Hash, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (p *PostgresBackend) RevokeAccessToken(ctx context.Context, hash string) error {
	return requireRow(p.pool.Exec(ctx,
		`UPDATE access_tokens SET revoked_at = COALESCE(revoked_at, NOW()) WHERE token_hash = $1`, hash))
}

// --- Credit history ---

func (p *PostgresBackend) WriteCreditEvent(ctx context.Context, e *models.CreditEvent) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO credit_events (id, user_id, email, action, amount, days, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.UserID, e.Email, string(e.Action), e.Amount, e.Days, e.CreatedAt,
	)
	return mapErr(err)
}

func (p *PostgresBackend) ListCreditEvents(ctx context.Context, userID string) ([]*models.CreditEvent, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, email, action, amount, days, created_at FROM credit_events
		 WHERE $1 = '' OR user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.CreditEvent
	for rows.Next() {
		var e models.CreditEvent
		var action string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Email, &action, &e.Amount, &e.Days, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = models.CreditAction(action)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// --- Sites ---

func (p *PostgresBackend) WriteSite(ctx context.Context, s *models.Site) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO sites (id, name, url, host, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url,
		   host = EXCLUDED.host, enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		s.ID, s.Name, s.URL, s.Host, s.Enabled, s.CreatedAt, s.UpdatedAt,
	)
	return mapErr(err)
}

const siteColumns = `id, name, url, host, enabled, created_at, updated_at`

func scanSite(row pgx.Row) (*models.Site, error) {
	var s models.Site
	if err := row.Scan(&s.ID, &s.Name, &s.URL, &s.Host, &s.Enabled, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (p *PostgresBackend) GetSite(ctx context.Context, id string) (*models.Site, error) {
	return scanSite(p.pool.QueryRow(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, id))
}

func (p *PostgresBackend) DeleteSite(ctx context.Context, id string) error {
	return requireRow(p.pool.Exec(ctx, `DELETE FROM sites WHERE id = $1`, id))
}

func (p *PostgresBackend) ListSites(ctx context.Context) ([]*models.Site, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- Pricing ---

func (p *PostgresBackend) WritePlan(ctx context.Context, pl *models.PricingPlan) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO pricing_plans (id, name, credits, price, validity_days, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, credits = EXCLUDED.credits,
		   price = EXCLUDED.price, validity_days = EXCLUDED.validity_days,
		   description = EXCLUDED.description, updated_at = EXCLUDED.updated_at`,
		pl.ID, pl.Name, pl.Credits, pl.Price, pl.ValidityDays, pl.Description, pl.CreatedAt, pl.UpdatedAt,
	)
	return mapErr(err)
}

const planColumns = `id, name, credits, price::float8, validity_days, description, created_at, updated_at`

func scanPlan(row pgx.Row) (*models.PricingPlan, error) {
	var pl models.PricingPlan
	if err := row.Scan(&pl.ID, &pl.Name, &pl.Credits, &pl.Price, &pl.ValidityDays, &pl.Description, &pl.CreatedAt, &pl.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &pl, nil
}

func (p *PostgresBackend) GetPlan(ctx context.Context, id string) (*models.PricingPlan, error) {
	return scanPlan(p.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM pricing_plans WHERE id = $1`, id))
}

func (p *PostgresBackend) DeletePlan(ctx context.Context, id string) error {
	return requireRow(p.pool.Exec(ctx, `DELETE FROM pricing_plans WHERE id = $1`, id))
}

func (p *PostgresBackend) ListPlans(ctx context.Context) ([]*models.PricingPlan, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+planColumns+` FROM pricing_plans ORDER BY price`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.PricingPlan
	for rows.Next() {
		pl, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

// --- Download tasks ---

const taskColumns = `id, user_id, url, platform, filename, status, progress, download_url,
	error_message, file_size, duration, created_at, updated_at`

func scanTask(row pgx.Row) (*models.DownloadTask, error) {
	var t models.DownloadTask
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.URL, &t.Platform, &t.Filename, &status, &t.Progress,
		&t.DownloadURL, &t.ErrorMessage, &t.FileSize, &t.Duration, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	t.Status = models.TaskStatus(status)
	return &t, nil
}

func (p *PostgresBackend) CreateTask(ctx context.Context, t *models.DownloadTask) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO download_tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.UserID, t.URL, t.Platform, t.Filename, string(t.Status), t.Progress,
		t.DownloadURL, t.ErrorMessage, t.FileSize, t.Duration, t.CreatedAt, t.UpdatedAt,
	)
	return mapErr(err)
}

func (p *PostgresBackend) GetTask(ctx context.Context, id string) (*models.DownloadTask, error) {
	return scanTask(p.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM download_tasks WHERE id = $1`, id))
}

func (p *PostgresBackend) UpdateTask(ctx context.Context, t *models.DownloadTask) error {
	return requireRow(p.pool.Exec(ctx,
		`UPDATE download_tasks SET filename = $2, status = $3, progress = $4, download_url = $5,
		   error_message = $6, file_size = $7, duration = $8, updated_at = $9
		 WHERE id = $1`,
		t.ID, t.Filename, string(t.Status), t.Progress, t.DownloadURL,
		t.ErrorMessage, t.FileSize, t.Duration, t.UpdatedAt,
	))
}

func (p *PostgresBackend) queryTasks(ctx context.Context, sql string, args ...any) ([]*models.DownloadTask, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.DownloadTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresBackend) ListTasks(ctx context.Context, userID string) ([]*models.DownloadTask, error) {
	return p.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM download_tasks WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (p *PostgresBackend) ListTasksByStatus(ctx context.Context, status models.TaskStatus, limit int) ([]*models.DownloadTask, error) {
	if limit <= 0 {
		limit = 100
	}
	return p.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM download_tasks WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(status), limit)
}

// --- Audit ---

func (p *PostgresBackend) WriteAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	return p.pool.QueryRow(ctx,
		`INSERT INTO audit_log (request_id, ts, user_id, operation, path, response_code, response_time_ms, client_ip)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		e.RequestID, e.Timestamp, e.UserID, e.Operation, e.Path, e.ResponseCode, e.ResponseTimeMs, e.ClientIP,
	).Scan(&e.ID)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSubdomainTaken is returned when the unique index on requests.subdomain
// rejects a create or detail edit. The pre-write availability check is best
// effort; this is the backstop for the race between two submitters.
var ErrSubdomainTaken = errors.New("subdomain already taken")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash)
		VALUES ($1, $2, LOWER($3), $4)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Refresh sessions (fallback when Redis is not configured)

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// Requests

func (s *PostgresStore) CreateRequest(ctx context.Context, request Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (
			id, user_id, name, email, whatsapp,
			project_name, project_type, other_project_type_description,
			subdomain, has_project_files, project_link, new_project_description,
			status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		request.ID, request.UserID, request.Name, request.Email, request.Whatsapp,
		request.ProjectName, request.ProjectType, request.OtherProjectTypeDescription,
		request.Subdomain, request.HasProjectFiles, request.ProjectLink, request.NewProjectDescription,
		request.Status,
	)
	if isUniqueViolation(err) {
		return ErrSubdomainTaken
	}
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

const requestColumns = `
	id, user_id, name, email, whatsapp,
	project_name, project_type, other_project_type_description,
	subdomain, has_project_files, project_link, new_project_description,
	status, created_at, updated_at, last_viewed_by_client
`

func scanRequest(row interface{ Scan(...any) error }) (Request, error) {
	var item Request
	err := row.Scan(
		&item.ID, &item.UserID, &item.Name, &item.Email, &item.Whatsapp,
		&item.ProjectName, &item.ProjectType, &item.OtherProjectTypeDescription,
		&item.Subdomain, &item.HasProjectFiles, &item.ProjectLink, &item.NewProjectDescription,
		&item.Status, &item.CreatedAt, &item.UpdatedAt, &item.LastViewedByClient,
	)
	return item, err
}

func (s *PostgresStore) GetRequest(ctx context.Context, requestID string) (Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=$1`, requestID)
	item, err := scanRequest(row)
	if err != nil {
		return Request{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListRequestsByOwner(ctx context.Context, ownerID string) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list requests by owner: %w", err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) ListRequests(ctx context.Context) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return collectRequests(rows)
}

func (s *PostgresStore) SearchRequests(ctx context.Context, query string, limit int) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE project_name ILIKE '%' || $1 || '%'
			OR subdomain ILIKE '%' || $1 || '%'
			OR name ILIKE '%' || $1 || '%'
			OR email ILIKE '%' || $1 || '%'
			OR new_project_description ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search requests: %w", err)
	}
	return collectRequests(rows)
}

func collectRequests(rows *sql.Rows) ([]Request, error) {
	defer rows.Close()
	items := make([]Request, 0)
	for rows.Next() {
		item, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SubdomainExists(ctx context.Context, label string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM requests WHERE subdomain=$1)`, label).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check subdomain: %w", err)
	}
	return exists, nil
}

// UpdateRequestStatus stamps updated_at server-side; the caller never
// supplies timestamps.
func (s *PostgresStore) UpdateRequestStatus(ctx context.Context, requestID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE requests SET status=$2, updated_at=NOW() WHERE id=$1
	`, requestID, status)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return errIfNoRows(result)
}

func (s *PostgresStore) UpdateRequestDetails(ctx context.Context, requestID string, details RequestDetails) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET project_name=$2, subdomain=$3, project_type=$4, updated_at=NOW()
		WHERE id=$1
	`, requestID, details.ProjectName, details.Subdomain, details.ProjectType)
	if isUniqueViolation(err) {
		return ErrSubdomainTaken
	}
	if err != nil {
		return fmt.Errorf("update request details: %w", err)
	}
	return errIfNoRows(result)
}

func (s *PostgresStore) UpdateRequestProjectLink(ctx context.Context, requestID, link string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE requests SET project_link=$2, updated_at=NOW() WHERE id=$1
	`, requestID, link)
	if err != nil {
		return fmt.Errorf("update request project link: %w", err)
	}
	return errIfNoRows(result)
}

// MarkViewed records the owner's unread watermark. It deliberately does not
// touch updated_at: a read is not a mutation of the request.
func (s *PostgresStore) MarkViewed(ctx context.Context, requestID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE requests SET last_viewed_by_client=$2 WHERE id=$1
	`, requestID, at)
	if err != nil {
		return fmt.Errorf("mark viewed: %w", err)
	}
	return nil
}

// Comments

// AppendComment inserts the comment row and applies the post-comment status
// in one transaction. Plain INSERTs mean concurrent appends compose; no
// comment can be lost to a read-modify-write race.
func (s *PostgresStore) AppendComment(ctx context.Context, requestID string, comment Comment, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append comment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO request_comments (request_id, author, author_id, text)
		VALUES ($1, $2, $3, $4)
	`, requestID, comment.Author, comment.AuthorID, comment.Text); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert comment: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE requests SET status=$2, updated_at=NOW() WHERE id=$1
	`, requestID, status)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("stamp request on comment: %w", err)
	}
	if err := errIfNoRows(result); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, requestID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, author, author_id, text, created_at
		FROM request_comments
		WHERE request_id=$1
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.RequestID, &item.Author, &item.AuthorID, &item.Text, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func errIfNoRows(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

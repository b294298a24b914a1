package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"postapi/internal/constants"
	apperrors "postapi/pkg/errors"
	"postapi/pkg/migrations"
)

const submissionColumns = `seq, uuid, bundle, provider_id, payload, content_hash, created_at, version, claimed_at, lease_expires_at`

// SQLStore keeps the queue in the post_api_queue table of PostgreSQL or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect string
	lease   time.Duration
	now     func() time.Time
}

func NewSQLStore(db *sql.DB, dialect string, lease time.Duration, opts ...Option) (*SQLStore, error) {
	if dialect != migrations.DialectPostgres && dialect != migrations.DialectSQLite {
		return nil, fmt.Errorf("unsupported queue dialect: %s", dialect)
	}
	o := buildOptions(opts)
	return &SQLStore{
		db:      db,
		dialect: dialect,
		lease:   lease,
		now:     o.now,
	}, nil
}

func (s *SQLStore) Enqueue(ctx context.Context, sub *Submission) (string, error) {
	if sub == nil || sub.UUID == "" {
		return "", apperrors.ErrRejectedEnqueue.WithMessage("submission uuid is required")
	}

	payload, err := encodePayload(sub.Payload)
	if err != nil {
		return "", apperrors.ErrRejectedEnqueue.WithCause(err)
	}

	query := `
		INSERT INTO post_api_queue (uuid, bundle, provider_id, payload, content_hash, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (uuid) DO UPDATE SET
			bundle = excluded.bundle,
			provider_id = excluded.provider_id,
			payload = excluded.payload,
			content_hash = excluded.content_hash,
			version = post_api_queue.version + 1,
			claimed_at = NULL,
			lease_expires_at = NULL
	`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		sub.UUID, sub.Bundle, sub.ProviderID, payload, sub.ContentHash, s.now().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to enqueue submission %s: %w", sub.UUID, err)
	}

	return sub.UUID, nil
}

func (s *SQLStore) Claim(ctx context.Context, bundles ...string) (*Submission, error) {
	now := s.now().Unix()
	expires := s.now().Add(s.lease).Unix()

	args := []interface{}{now, expires, now}

	var filter string
	if len(bundles) > 0 {
		filter = " AND bundle IN (" + makePlaceholders(len(bundles)) + ")"
		for _, b := range bundles {
			args = append(args, b)
		}
	}

	var lock string
	if s.dialect == migrations.DialectPostgres {
		lock = " FOR UPDATE SKIP LOCKED"
	}

	query := `
		UPDATE post_api_queue
		SET claimed_at = ?, lease_expires_at = ?
		WHERE seq = (
			SELECT seq FROM post_api_queue
			WHERE (lease_expires_at IS NULL OR lease_expires_at < ?)` + filter + `
			ORDER BY seq
			LIMIT 1` + lock + `
		)
		RETURNING ` + submissionColumns

	row := s.db.QueryRowContext(ctx, s.rebind(query), args...)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim submission: %w", err)
	}

	return sub, nil
}

func (s *SQLStore) Delete(ctx context.Context, sub *Submission) error {
	if sub == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM post_api_queue WHERE uuid = ? AND version = ?`),
		sub.UUID, sub.Version)
	if err != nil {
		return fmt.Errorf("failed to delete submission %s: %w", sub.UUID, err)
	}

	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_api_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return count, nil
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]*Submission, error) {
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+submissionColumns+` FROM post_api_queue ORDER BY seq LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	var (
		sub       Submission
		payload   []byte
		createdAt int64
		claimedAt sql.NullInt64
		expiresAt sql.NullInt64
	)

	err := row.Scan(
		&sub.Seq,
		&sub.UUID,
		&sub.Bundle,
		&sub.ProviderID,
		&payload,
		&sub.ContentHash,
		&createdAt,
		&sub.Version,
		&claimedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Payload, err = decodePayload(payload)
	if err != nil {
		return nil, err
	}
	sub.CreatedAt = time.Unix(createdAt, 0).UTC()
	if claimedAt.Valid {
		sub.ClaimedAt = unixPtr(claimedAt.Int64)
	}
	if expiresAt.Valid {
		sub.LeaseExpiresAt = unixPtr(expiresAt.Int64)
	}

	return &sub, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != migrations.DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

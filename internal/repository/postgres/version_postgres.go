package postgres

import (
	"context"
	"database/sql"

	"stashdocs/internal/model"
	"stashdocs/internal/repository"
)

// insertSavepoint guards tx-bound inserts. The name is a code-level
// constant, never derived from input.
const insertSavepoint = "version_insert"

// VersionPostgres is a PostgreSQL implementation of repository.VersionRepository.
type VersionPostgres struct {
	q    repository.DBTX
	inTx bool
}

// NewVersionPostgres creates a new VersionPostgres repository.
func NewVersionPostgres(q repository.DBTX) *VersionPostgres {
	return &VersionPostgres{q: q}
}

var _ repository.VersionRepository = (*VersionPostgres)(nil)

// WithTx returns a copy of the repository bound to the transaction.
func (r *VersionPostgres) WithTx(tx *sql.Tx) repository.VersionRepository {
	return &VersionPostgres{q: tx, inTx: true}
}

// Insert adds a new version row. A (file_id, seq) uniqueness violation
// surfaces here as a *pgconn.PgError with code 23505.
//
// PostgreSQL aborts the whole transaction on any statement error, so a
// tx-bound insert runs under a savepoint: a failed insert rolls back to
// the savepoint, the surrounding transaction stays usable, and the
// caller can retry with the next sequence number. Standalone inserts
// run in autocommit mode and need no savepoint.
func (r *VersionPostgres) Insert(ctx context.Context, v *model.FileVersion) (*model.FileVersion, error) {
	if r.inTx {
		if _, err := r.q.ExecContext(ctx, "SAVEPOINT "+insertSavepoint); err != nil {
			return nil, err
		}
	}

	const q = `
		INSERT INTO file_versions (id, file_id, content, seq, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, file_id, content, seq, author_id, created_at
	`
	row := r.q.QueryRowContext(ctx, q,
		v.ID,
		v.FileID,
		v.Content,
		v.Seq,
		v.AuthorID,
		v.CreatedAt,
	)
	var out model.FileVersion
	if err := row.Scan(
		&out.ID,
		&out.FileID,
		&out.Content,
		&out.Seq,
		&out.AuthorID,
		&out.CreatedAt,
	); err != nil {
		if r.inTx {
			_, _ = r.q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+insertSavepoint)
		}
		return nil, err
	}

	if r.inTx {
		if _, err := r.q.ExecContext(ctx, "RELEASE SAVEPOINT "+insertSavepoint); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// MaxSeq returns the current maximum sequence number for a file.
// A file with no versions yet yields 0. The value is always computed
// fresh; it is never cached across requests.
func (r *VersionPostgres) MaxSeq(ctx context.Context, fileID string) (int, error) {
	const q = `SELECT COALESCE(MAX(seq), 0) FROM file_versions WHERE file_id = $1`
	var max int
	if err := r.q.QueryRowContext(ctx, q, fileID).Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

// FindByID fetches a single version by its ID.
func (r *VersionPostgres) FindByID(ctx context.Context, id string) (*model.FileVersion, error) {
	const q = `
		SELECT id, file_id, content, seq, author_id, created_at
		FROM file_versions
		WHERE id = $1
	`
	row := r.q.QueryRowContext(ctx, q, id)
	var v model.FileVersion
	if err := row.Scan(
		&v.ID,
		&v.FileID,
		&v.Content,
		&v.Seq,
		&v.AuthorID,
		&v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByFile returns every version of a file, newest first. The
// descending (file_id, seq) index serves this ordering directly.
func (r *VersionPostgres) ListByFile(ctx context.Context, fileID string) ([]model.FileVersion, error) {
	const q = `
		SELECT id, file_id, content, seq, author_id, created_at
		FROM file_versions
		WHERE file_id = $1
		ORDER BY seq DESC
	`
	rows, err := r.q.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.FileVersion, 0)
	for rows.Next() {
		var v model.FileVersion
		if err := rows.Scan(
			&v.ID,
			&v.FileID,
			&v.Content,
			&v.Seq,
			&v.AuthorID,
			&v.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

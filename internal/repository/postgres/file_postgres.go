package postgres

import (
	"context"
	"database/sql"
	"time"

	"stashdocs/internal/model"
	"stashdocs/internal/repository"
)

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type FilePostgres struct {
	q repository.DBTX
}

// NewFilePostgres creates a new FilePostgres repository over a *sql.DB
// or any other DBTX.
func NewFilePostgres(q repository.DBTX) *FilePostgres {
	return &FilePostgres{q: q}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

// WithTx returns a copy of the repository bound to the transaction.
func (r *FilePostgres) WithTx(tx *sql.Tx) repository.FileRepository {
	return &FilePostgres{q: tx}
}

// Create inserts a new file row and returns the stored record.
func (r *FilePostgres) Create(ctx context.Context, f *model.File) (*model.File, error) {
	const q = `
		INSERT INTO files (id, stash_id, folder_id, name, content, doc_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, stash_id, folder_id, name, content, doc_type, created_at, updated_at
	`
	row := r.q.QueryRowContext(ctx, q,
		f.ID,
		f.StashID,
		f.FolderID,
		f.Name,
		f.Content,
		f.DocType,
		f.CreatedAt,
		f.UpdatedAt,
	)
	var out model.File
	if err := row.Scan(
		&out.ID,
		&out.StashID,
		&out.FolderID,
		&out.Name,
		&out.Content,
		&out.DocType,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single file by its ID, including its tag set.
func (r *FilePostgres) FindByID(ctx context.Context, id string) (*model.File, error) {
	const q = `
		SELECT id, stash_id, folder_id, name, content, doc_type, created_at, updated_at
		FROM files
		WHERE id = $1
	`
	row := r.q.QueryRowContext(ctx, q, id)
	var f model.File
	if err := row.Scan(
		&f.ID,
		&f.StashID,
		&f.FolderID,
		&f.Name,
		&f.Content,
		&f.DocType,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}

	const qTags = `SELECT tag FROM file_tags WHERE file_id = $1 ORDER BY tag`
	rows, err := r.q.QueryContext(ctx, qTags, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	f.Tags = tags
	return &f, nil
}

// UpdateName sets the display name and bumps updated_at.
func (r *FilePostgres) UpdateName(ctx context.Context, id, name string) error {
	const q = `UPDATE files SET name = $2, updated_at = $3 WHERE id = $1`
	res, err := r.q.ExecContext(ctx, q, id, name, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateContent sets the live content and bumps updated_at.
func (r *FilePostgres) UpdateContent(ctx context.Context, id, content string) error {
	const q = `UPDATE files SET content = $2, updated_at = $3 WHERE id = $1`
	res, err := r.q.ExecContext(ctx, q, id, content, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceTags deletes the whole tag set and inserts the new one.
func (r *FilePostgres) ReplaceTags(ctx context.Context, id string, tags []string) error {
	const qDel = `DELETE FROM file_tags WHERE file_id = $1`
	if _, err := r.q.ExecContext(ctx, qDel, id); err != nil {
		return err
	}
	const qIns = `INSERT INTO file_tags (file_id, tag) VALUES ($1, $2)`
	for _, tag := range tags {
		if _, err := r.q.ExecContext(ctx, qIns, id, tag); err != nil {
			return err
		}
	}
	return nil
}

// OwnerOf resolves the owning user of a file through its stash.
func (r *FilePostgres) OwnerOf(ctx context.Context, fileID string) (string, error) {
	const q = `
		SELECT s.owner_id
		FROM files f
		JOIN stashes s ON s.id = f.stash_id
		WHERE f.id = $1
	`
	var ownerID string
	if err := r.q.QueryRowContext(ctx, q, fileID).Scan(&ownerID); err != nil {
		return "", err
	}
	return ownerID, nil
}

// StashOwner resolves the owning user of a stash.
func (r *FilePostgres) StashOwner(ctx context.Context, stashID string) (string, error) {
	const q = `SELECT owner_id FROM stashes WHERE id = $1`
	var ownerID string
	if err := r.q.QueryRowContext(ctx, q, stashID).Scan(&ownerID); err != nil {
		return "", err
	}
	return ownerID, nil
}

// Delete removes a file by ID. Versions and tags are removed by the
// ON DELETE CASCADE constraints.
func (r *FilePostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM files WHERE id = $1`
	res, err := r.q.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

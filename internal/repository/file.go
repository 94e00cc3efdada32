package repository

import (
	"context"
	"database/sql"

	"stashdocs/internal/model"
)

// FileRepository defines data access for files, their tags, and the
// ownership chain (file -> stash -> user). SQL only, no business logic.
type FileRepository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sql.Tx) FileRepository

	// Create inserts a new file row. The caller provides ID and timestamps.
	Create(ctx context.Context, f *model.File) (*model.File, error)

	// FindByID returns a file by its ID with tags populated.
	FindByID(ctx context.Context, id string) (*model.File, error)

	// UpdateName sets the display name and bumps updated_at.
	UpdateName(ctx context.Context, id, name string) error

	// UpdateContent sets the live content and bumps updated_at.
	UpdateContent(ctx context.Context, id, content string) error

	// ReplaceTags replaces the full tag set: delete-all-then-insert, not a diff.
	ReplaceTags(ctx context.Context, id string, tags []string) error

	// OwnerOf resolves the user ID that owns the file's stash.
	OwnerOf(ctx context.Context, fileID string) (string, error)

	// StashOwner resolves the user ID that owns the stash.
	StashOwner(ctx context.Context, stashID string) (string, error)

	// Delete removes a file; versions and tags cascade at the storage layer.
	Delete(ctx context.Context, id string) error
}

// VersionRepository defines data access for immutable file version rows.
// Rows are only ever inserted on the live path; renumbering is the
// offline repair tool's business.
type VersionRepository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sql.Tx) VersionRepository

	// Insert adds a new version row. The (file_id, seq) uniqueness
	// constraint makes concurrent duplicate sequence claims fail here.
	// A transaction-bound implementation must leave the transaction
	// usable after a failed insert so the caller can retry.
	Insert(ctx context.Context, v *model.FileVersion) (*model.FileVersion, error)

	// MaxSeq returns the highest sequence number for a file, 0 when the
	// file has no versions yet.
	MaxSeq(ctx context.Context, fileID string) (int, error)

	// FindByID returns a version by its ID.
	FindByID(ctx context.Context, id string) (*model.FileVersion, error)

	// ListByFile returns all versions of a file, newest first.
	ListByFile(ctx context.Context, fileID string) ([]model.FileVersion, error)
}

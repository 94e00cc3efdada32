package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stashdocs/internal/model"
	"stashdocs/internal/repository"
	"stashdocs/internal/version"
)

var (
	ErrIDRequired   = errors.New("id is required")
	ErrNameRequired = errors.New("name is required")
	ErrNotFound     = errors.New("record not found")
	ErrNotOwner     = errors.New("principal does not own this record")
)

// UpdateFileInput carries a partial update. Nil fields are left
// untouched; a nil Tags slice keeps the current tag set while an empty
// one clears it.
type UpdateFileInput struct {
	Name    *string
	Content *string
	Tags    []string
}

// FileService defines the use cases for mutating and reading versioned
// files. Every mutation is one atomic unit of work: the file row update
// and the version row insert commit together or not at all.
type FileService interface {
	// CreateFile inserts a file and its version 1 in one transaction.
	CreateFile(ctx context.Context, principalID, stashID, name, content, docType string, tags []string) (*model.File, error)

	// UpdateFile applies a partial update. A new version is allocated
	// if and only if the new content differs from the stored content;
	// name-only or tag-only changes never create a version.
	UpdateFile(ctx context.Context, principalID, fileID string, in UpdateFileInput) (*model.File, error)

	// RevertFile sets the file's content back to an old version's
	// snapshot. History only grows forward: the old content is recorded
	// under a brand-new sequence number.
	RevertFile(ctx context.Context, principalID, fileID, versionID string) (*model.File, error)

	// GetFile returns a single file with its tags.
	GetFile(ctx context.Context, principalID, fileID string) (*model.File, error)

	// ListVersions returns the file's versions newest first. Read-only,
	// no transaction.
	ListVersions(ctx context.Context, principalID, fileID string) ([]model.FileVersion, error)

	// DeleteFile removes a file; its versions and tags cascade with it.
	DeleteFile(ctx context.Context, principalID, fileID string) error
}

// fileService is a concrete implementation of FileService.
type fileService struct {
	db       *sql.DB
	files    repository.FileRepository
	versions repository.VersionRepository
	alloc    *version.Allocator
}

// NewFileService constructs a new FileService.
func NewFileService(db *sql.DB, files repository.FileRepository, versions repository.VersionRepository, alloc *version.Allocator) FileService {
	return &fileService{db: db, files: files, versions: versions, alloc: alloc}
}

// authorize verifies the principal owns the file's stash. It runs
// before any transaction opens, so an authorization failure is never a
// rollback.
func (s *fileService) authorize(ctx context.Context, principalID, fileID string) error {
	owner, err := s.files.OwnerOf(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if owner != principalID {
		return ErrNotOwner
	}
	return nil
}

func (s *fileService) CreateFile(ctx context.Context, principalID, stashID, name, content, docType string, tags []string) (*model.File, error) {
	if principalID == "" || stashID == "" {
		return nil, ErrIDRequired
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	if docType == "" {
		docType = "text"
	}

	owner, err := s.files.StashOwner(ctx, stashID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if owner != principalID {
		return nil, ErrNotOwner
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ftx := s.files.WithTx(tx)
	vtx := s.versions.WithTx(tx)

	now := time.Now().UTC()
	created, err := ftx.Create(ctx, &model.File{
		ID:        uuid.New().String(),
		StashID:   stashID,
		Name:      name,
		Content:   content,
		DocType:   docType,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}

	if len(tags) > 0 {
		if err := ftx.ReplaceTags(ctx, created.ID, tags); err != nil {
			return nil, fmt.Errorf("set tags: %w", err)
		}
		created.Tags = tags
	}

	// A file is born together with its version 1.
	if _, err := s.alloc.Allocate(ctx, vtx, created.ID, content, principalID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (s *fileService) UpdateFile(ctx context.Context, principalID, fileID string, in UpdateFileInput) (*model.File, error) {
	if principalID == "" || fileID == "" {
		return nil, ErrIDRequired
	}
	if err := s.authorize(ctx, principalID, fileID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ftx := s.files.WithTx(tx)
	vtx := s.versions.WithTx(tx)

	f, err := ftx.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if in.Name != nil && *in.Name != f.Name {
		if *in.Name == "" {
			return nil, ErrNameRequired
		}
		if err := ftx.UpdateName(ctx, fileID, *in.Name); err != nil {
			return nil, fmt.Errorf("update name: %w", err)
		}
		f.Name = *in.Name
	}

	if in.Content != nil && *in.Content != f.Content {
		if err := ftx.UpdateContent(ctx, fileID, *in.Content); err != nil {
			return nil, fmt.Errorf("update content: %w", err)
		}
		if _, err := s.alloc.Allocate(ctx, vtx, fileID, *in.Content, principalID); err != nil {
			return nil, err
		}
		f.Content = *in.Content
	}

	if in.Tags != nil {
		if err := ftx.ReplaceTags(ctx, fileID, in.Tags); err != nil {
			return nil, fmt.Errorf("replace tags: %w", err)
		}
		f.Tags = in.Tags
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return f, nil
}

func (s *fileService) RevertFile(ctx context.Context, principalID, fileID, versionID string) (*model.File, error) {
	if principalID == "" || fileID == "" || versionID == "" {
		return nil, ErrIDRequired
	}
	if err := s.authorize(ctx, principalID, fileID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ftx := s.files.WithTx(tx)
	vtx := s.versions.WithTx(tx)

	target, err := vtx.FindByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// A version of some other file is as good as absent.
	if target.FileID != fileID {
		return nil, ErrNotFound
	}

	f, err := ftx.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := ftx.UpdateContent(ctx, fileID, target.Content); err != nil {
		return nil, fmt.Errorf("update content: %w", err)
	}
	if _, err := s.alloc.Allocate(ctx, vtx, fileID, target.Content, principalID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	f.Content = target.Content
	return f, nil
}

func (s *fileService) GetFile(ctx context.Context, principalID, fileID string) (*model.File, error) {
	if principalID == "" || fileID == "" {
		return nil, ErrIDRequired
	}
	if err := s.authorize(ctx, principalID, fileID); err != nil {
		return nil, err
	}

	f, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *fileService) ListVersions(ctx context.Context, principalID, fileID string) ([]model.FileVersion, error) {
	if principalID == "" || fileID == "" {
		return nil, ErrIDRequired
	}
	if err := s.authorize(ctx, principalID, fileID); err != nil {
		return nil, err
	}
	return s.versions.ListByFile(ctx, fileID)
}

func (s *fileService) DeleteFile(ctx context.Context, principalID, fileID string) error {
	if principalID == "" || fileID == "" {
		return ErrIDRequired
	}
	if err := s.authorize(ctx, principalID, fileID); err != nil {
		return err
	}

	if err := s.files.Delete(ctx, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"stashdocs/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	f := &model.File{
		ID:        "file-1",
		StashID:   "stash-1",
		Name:      "notes.md",
		Content:   "v1",
		DocType:   "text",
		CreatedAt: now,
		UpdatedAt: now,
	}

	rows := sqlmock.NewRows([]string{"id", "stash_id", "folder_id", "name", "content", "doc_type", "created_at", "updated_at"}).
		AddRow(f.ID, f.StashID, nil, f.Name, f.Content, f.DocType, f.CreatedAt, f.UpdatedAt)

	mock.ExpectQuery("INSERT INTO files").
		WithArgs(f.ID, f.StashID, f.FolderID, f.Name, f.Content, f.DocType, f.CreatedAt, f.UpdatedAt).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, f)

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, f.ID, result.ID)
	assert.Nil(t, result.FolderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("found with tags", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "stash_id", "folder_id", "name", "content", "doc_type", "created_at", "updated_at"}).
			AddRow("file-1", "stash-1", nil, "notes.md", "v1", "text", time.Now(), time.Now())
		mock.ExpectQuery("SELECT (.+) FROM files WHERE id = ?").
			WithArgs("file-1").
			WillReturnRows(rows)
		mock.ExpectQuery("SELECT tag FROM file_tags").
			WithArgs("file-1").
			WillReturnRows(sqlmock.NewRows([]string{"tag"}).AddRow("draft").AddRow("work"))

		f, err := repo.FindByID(ctx, "file-1")

		assert.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, "file-1", f.ID)
		assert.Equal(t, []string{"draft", "work"}, f.Tags)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM files WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		f, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, f)
	})
}

func TestFilePostgres_UpdateContent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE files SET content").
			WithArgs("file-1", "v2", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateContent(ctx, "file-1", "v2"))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE files SET content").
			WithArgs("missing", "v2", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateContent(ctx, "missing", "v2"), sql.ErrNoRows)
	})
}

func TestFilePostgres_UpdateName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE files SET name").
		WithArgs("file-1", "renamed.md", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateName(ctx, "file-1", "renamed.md"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilePostgres_ReplaceTags(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("delete-all-then-insert", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM file_tags").
			WithArgs("file-1").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("INSERT INTO file_tags").
			WithArgs("file-1", "a").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO file_tags").
			WithArgs("file-1", "b").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.ReplaceTags(ctx, "file-1", []string{"a", "b"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty set clears tags", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM file_tags").
			WithArgs("file-1").
			WillReturnResult(sqlmock.NewResult(0, 2))

		assert.NoError(t, repo.ReplaceTags(ctx, "file-1", nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFilePostgres_OwnerOf(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("resolves through the stash", func(t *testing.T) {
		mock.ExpectQuery("SELECT s.owner_id").
			WithArgs("file-1").
			WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("user-1"))

		owner, err := repo.OwnerOf(ctx, "file-1")

		assert.NoError(t, err)
		assert.Equal(t, "user-1", owner)
	})

	t.Run("unknown file", func(t *testing.T) {
		mock.ExpectQuery("SELECT s.owner_id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		owner, err := repo.OwnerOf(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Empty(t, owner)
	})
}

func TestFilePostgres_StashOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT owner_id FROM stashes").
		WithArgs("stash-1").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow("user-1"))

	owner, err := repo.StashOwner(ctx, "stash-1")

	assert.NoError(t, err)
	assert.Equal(t, "user-1", owner)
}

func TestFilePostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFilePostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM files WHERE id = ?").
			WithArgs("file-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(ctx, "file-1"))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM files WHERE id = ?").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(ctx, "missing"), sql.ErrNoRows)
	})
}

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"stashdocs/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionPostgres_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVersionPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	v := &model.FileVersion{
		ID:        "ver-1",
		FileID:    "file-1",
		Content:   "v1",
		Seq:       1,
		AuthorID:  "user-1",
		CreatedAt: now,
	}

	rows := sqlmock.NewRows([]string{"id", "file_id", "content", "seq", "author_id", "created_at"}).
		AddRow(v.ID, v.FileID, v.Content, v.Seq, v.AuthorID, v.CreatedAt)

	mock.ExpectQuery("INSERT INTO file_versions").
		WithArgs(v.ID, v.FileID, v.Content, v.Seq, v.AuthorID, v.CreatedAt).
		WillReturnRows(rows)

	result, err := repo.Insert(ctx, v)

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionPostgres_Insert_InsideTx(t *testing.T) {
	ctx := context.Background()

	t.Run("lost race rolls back to the savepoint, tx stays usable", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		repo := NewVersionPostgres(db).WithTx(tx)

		mock.ExpectExec("^SAVEPOINT version_insert$").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("INSERT INTO file_versions").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "file_versions_file_id_seq_key"})
		mock.ExpectExec("^ROLLBACK TO SAVEPOINT version_insert$").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err = repo.Insert(ctx, &model.FileVersion{ID: "ver-2", FileID: "file-1", Content: "x", Seq: 2, AuthorID: "user-1"})

		var pgErr *pgconn.PgError
		require.ErrorAs(t, err, &pgErr)
		assert.Equal(t, "23505", pgErr.Code)

		// The transaction accepts further statements after the rollback.
		mock.ExpectQuery("SELECT COALESCE\\(MAX\\(seq\\), 0\\)").
			WithArgs("file-1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))

		max, err := repo.MaxSeq(ctx, "file-1")

		assert.NoError(t, err)
		assert.Equal(t, 2, max)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("successful insert releases the savepoint", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		tx, err := db.Begin()
		require.NoError(t, err)

		repo := NewVersionPostgres(db).WithTx(tx)
		now := time.Now().UTC()

		mock.ExpectExec("^SAVEPOINT version_insert$").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("INSERT INTO file_versions").
			WithArgs("ver-3", "file-1", "x", 3, "user-1", now).
			WillReturnRows(sqlmock.NewRows([]string{"id", "file_id", "content", "seq", "author_id", "created_at"}).
				AddRow("ver-3", "file-1", "x", 3, "user-1", now))
		mock.ExpectExec("^RELEASE SAVEPOINT version_insert$").
			WillReturnResult(sqlmock.NewResult(0, 0))

		v, err := repo.Insert(ctx, &model.FileVersion{ID: "ver-3", FileID: "file-1", Content: "x", Seq: 3, AuthorID: "user-1", CreatedAt: now})

		assert.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, 3, v.Seq)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestVersionPostgres_MaxSeq(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVersionPostgres(db)
	ctx := context.Background()

	t.Run("no versions yet", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE\\(MAX\\(seq\\), 0\\)").
			WithArgs("file-1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

		max, err := repo.MaxSeq(ctx, "file-1")

		assert.NoError(t, err)
		assert.Equal(t, 0, max)
	})

	t.Run("existing versions", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE\\(MAX\\(seq\\), 0\\)").
			WithArgs("file-1").
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7))

		max, err := repo.MaxSeq(ctx, "file-1")

		assert.NoError(t, err)
		assert.Equal(t, 7, max)
	})
}

func TestVersionPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVersionPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "file_id", "content", "seq", "author_id", "created_at"}).
			AddRow("ver-1", "file-1", "v1", 1, "user-1", time.Now())
		mock.ExpectQuery("SELECT (.+) FROM file_versions WHERE id = ?").
			WithArgs("ver-1").
			WillReturnRows(rows)

		v, err := repo.FindByID(ctx, "ver-1")

		assert.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "file-1", v.FileID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM file_versions WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		v, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, v)
	})
}

func TestVersionPostgres_ListByFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewVersionPostgres(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "file_id", "content", "seq", "author_id", "created_at"}).
		AddRow("ver-3", "file-1", "v1", 3, "user-1", time.Now()).
		AddRow("ver-2", "file-1", "v2", 2, "user-1", time.Now()).
		AddRow("ver-1", "file-1", "v1", 1, "user-1", time.Now())

	mock.ExpectQuery("SELECT (.+) FROM file_versions WHERE file_id = (.+) ORDER BY seq DESC").
		WithArgs("file-1").
		WillReturnRows(rows)

	items, err := repo.ListByFile(ctx, "file-1")

	assert.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 3, items[0].Seq)
	assert.Equal(t, 1, items[2].Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	files := NewFilePostgres(db)
	versions := NewVersionPostgres(db)

	assert.NotSame(t, files, files.WithTx(tx))
	assert.NotSame(t, versions, versions.WithTx(tx))
}

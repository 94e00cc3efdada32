// Package audit implements the offline consistency check and repair for
// file version sequences. It targets legacy data written before the
// (file_id, seq) uniqueness constraint existed; it is a one-time
// migration utility and is never invoked from a request path.
package audit

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"stashdocs/internal/model"
	"stashdocs/internal/storage"
)

// Corruption describes one file whose version sequence violates the
// uniqueness or contiguity invariant.
type Corruption struct {
	FileID        string `json:"file_id"`
	DuplicateSeqs []int  `json:"duplicate_seqs,omitempty"`
	Gap           bool   `json:"gap,omitempty"`
}

func (c Corruption) Error() string {
	if len(c.DuplicateSeqs) > 0 {
		return fmt.Sprintf("corrupted version sequence for file %s: duplicate seqs %v", c.FileID, c.DuplicateSeqs)
	}
	return fmt.Sprintf("corrupted version sequence for file %s: non-contiguous seqs", c.FileID)
}

// PlanChange is one version row the repair would renumber.
type PlanChange struct {
	VersionID string `json:"version_id"`
	FromSeq   int    `json:"from_seq"`
	ToSeq     int    `json:"to_seq"`
}

// FilePlan is the renumbering plan for one file.
type FilePlan struct {
	FileID  string       `json:"file_id"`
	Changes []PlanChange `json:"changes"`
}

// Report summarizes one audit/repair run.
type Report struct {
	DryRun        bool              `json:"dry_run"`
	Corruptions   []Corruption      `json:"corruptions"`
	Plans         []FilePlan        `json:"plans,omitempty"`
	BackupTable   string            `json:"backup_table,omitempty"`
	BackupObject  string            `json:"backup_object,omitempty"`
	FilesRepaired int               `json:"files_repaired"`
	FileErrors    map[string]string `json:"file_errors,omitempty"`
}

// Auditor scans the version table for sequence corruption and renumbers
// affected files by creation time. The store is optional; when present,
// a JSON dump of the version table is uploaded and read back before any
// write.
type Auditor struct {
	db    *sql.DB
	store storage.Storage
	now   func() time.Time
}

// New creates an Auditor. Pass a nil store to keep backups in the
// database only.
func New(db *sql.DB, store storage.Storage) *Auditor {
	return &Auditor{db: db, store: store, now: time.Now}
}

// Scan reports every file whose version sequence is corrupted: a
// duplicate (file_id, seq) pair, or a non-contiguous run.
func (a *Auditor) Scan(ctx context.Context) ([]Corruption, error) {
	const qDup = `
		SELECT file_id, seq
		FROM file_versions
		GROUP BY file_id, seq
		HAVING COUNT(*) > 1
		ORDER BY file_id, seq
	`
	rows, err := a.db.QueryContext(ctx, qDup)
	if err != nil {
		return nil, fmt.Errorf("scan duplicates: %w", err)
	}
	defer rows.Close()

	byFile := make(map[string]*Corruption)
	order := make([]string, 0)
	for rows.Next() {
		var fileID string
		var seq int
		if err := rows.Scan(&fileID, &seq); err != nil {
			return nil, err
		}
		c, ok := byFile[fileID]
		if !ok {
			c = &Corruption{FileID: fileID}
			byFile[fileID] = c
			order = append(order, fileID)
		}
		c.DuplicateSeqs = append(c.DuplicateSeqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const qGap = `
		SELECT file_id
		FROM file_versions
		GROUP BY file_id
		HAVING MIN(seq) <> 1 OR MAX(seq) <> COUNT(*)
		ORDER BY file_id
	`
	gapRows, err := a.db.QueryContext(ctx, qGap)
	if err != nil {
		return nil, fmt.Errorf("scan gaps: %w", err)
	}
	defer gapRows.Close()

	for gapRows.Next() {
		var fileID string
		if err := gapRows.Scan(&fileID); err != nil {
			return nil, err
		}
		c, ok := byFile[fileID]
		if !ok {
			c = &Corruption{FileID: fileID}
			byFile[fileID] = c
			order = append(order, fileID)
		}
		c.Gap = true
	}
	if err := gapRows.Err(); err != nil {
		return nil, err
	}

	out := make([]Corruption, 0, len(order))
	for _, id := range order {
		out = append(out, *byFile[id])
	}
	return out, nil
}

// planFor computes the renumbering for one file: all its versions
// ordered by creation time (ties broken by id, deterministically) get
// sequence numbers 1..N in that order.
func (a *Auditor) planFor(ctx context.Context, fileID string) (FilePlan, error) {
	const q = `
		SELECT id, seq
		FROM file_versions
		WHERE file_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := a.db.QueryContext(ctx, q, fileID)
	if err != nil {
		return FilePlan{}, fmt.Errorf("plan file %s: %w", fileID, err)
	}
	defer rows.Close()

	plan := FilePlan{FileID: fileID}
	next := 0
	for rows.Next() {
		next++
		var id string
		var seq int
		if err := rows.Scan(&id, &seq); err != nil {
			return FilePlan{}, err
		}
		if seq != next {
			plan.Changes = append(plan.Changes, PlanChange{VersionID: id, FromSeq: seq, ToSeq: next})
		}
	}
	if err := rows.Err(); err != nil {
		return FilePlan{}, err
	}
	return plan, nil
}

// Repair detects corruption and renumbers the affected files. Each file
// is fixed in its own transaction: a failure rolls back only that
// file's changes, files already committed stay fixed. Running Repair
// again after a successful pass finds nothing to do.
func (a *Auditor) Repair(ctx context.Context, dryRun bool) (*Report, error) {
	corruptions, err := a.Scan(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{DryRun: dryRun, Corruptions: corruptions}
	if len(corruptions) == 0 {
		return report, nil
	}

	for _, c := range corruptions {
		plan, err := a.planFor(ctx, c.FileID)
		if err != nil {
			return nil, err
		}
		report.Plans = append(report.Plans, plan)
	}

	if dryRun {
		return report, nil
	}

	stamp := a.now().UTC().Format("20060102150405")

	// Full copy of the version table before any write. The table name is
	// generated here, never from user input.
	report.BackupTable = "file_versions_backup_" + stamp
	backupSQL := fmt.Sprintf(`CREATE TABLE %s AS TABLE file_versions`, report.BackupTable)
	if _, err := a.db.ExecContext(ctx, backupSQL); err != nil {
		return nil, fmt.Errorf("backup version table: %w", err)
	}

	if a.store != nil {
		key, err := a.uploadDump(ctx, stamp)
		if err != nil {
			return nil, fmt.Errorf("upload version table dump: %w", err)
		}
		report.BackupObject = key
	}

	report.FileErrors = make(map[string]string)
	for _, plan := range report.Plans {
		if len(plan.Changes) == 0 {
			continue
		}
		if err := a.repairFile(ctx, plan.FileID); err != nil {
			report.FileErrors[plan.FileID] = err.Error()
			continue
		}
		report.FilesRepaired++
	}
	if len(report.FileErrors) == 0 {
		report.FileErrors = nil
	}
	return report, nil
}

// repairFile renumbers one file's versions 1..N by creation time inside
// a single transaction. Sequences move through negative placeholders so
// the renumbering never trips the uniqueness constraint halfway.
func (a *Auditor) repairFile(ctx context.Context, fileID string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const qOrder = `
		SELECT id
		FROM file_versions
		WHERE file_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := tx.QueryContext(ctx, qOrder, fileID)
	if err != nil {
		return err
	}
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	const qTemp = `UPDATE file_versions SET seq = $2 WHERE id = $1`
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, qTemp, id, -(i + 1)); err != nil {
			return fmt.Errorf("renumber version %s: %w", id, err)
		}
	}

	const qFlip = `UPDATE file_versions SET seq = -seq WHERE file_id = $1 AND seq < 0`
	if _, err := tx.ExecContext(ctx, qFlip, fileID); err != nil {
		return fmt.Errorf("finalize renumbering: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// uploadDump streams a JSON dump of the whole version table to object
// storage, reads the object back to confirm it is retrievable, and
// returns the object key. Renumbering only proceeds once the dump has
// been verified.
func (a *Auditor) uploadDump(ctx context.Context, stamp string) (string, error) {
	const q = `
		SELECT id, file_id, content, seq, author_id, created_at
		FROM file_versions
		ORDER BY file_id, seq, id
	`
	rows, err := a.db.QueryContext(ctx, q)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	dump := make([]model.FileVersion, 0)
	for rows.Next() {
		var v model.FileVersion
		if err := rows.Scan(&v.ID, &v.FileID, &v.Content, &v.Seq, &v.AuthorID, &v.CreatedAt); err != nil {
			return "", err
		}
		dump = append(dump, v)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(dump)
	if err != nil {
		return "", err
	}

	key := "repair-backups/file_versions_" + stamp + ".json"
	_, err = a.store.Put(ctx, key, bytes.NewReader(payload), storage.PutObjectOptions{
		Size:        int64(len(payload)),
		ContentType: "application/json",
	})
	if err != nil {
		return "", err
	}

	rc, _, err := a.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read back dump: %w", err)
	}
	defer rc.Close()
	n, err := io.Copy(io.Discard, rc)
	if err != nil {
		return "", fmt.Errorf("read back dump: %w", err)
	}
	if n != int64(len(payload)) {
		return "", fmt.Errorf("dump readback size mismatch: got %d bytes, want %d", n, len(payload))
	}
	return key, nil
}

package model

import "time"

// File represents a stored document in a stash. Content holds the live
// value; every past value lives in a FileVersion row. These are pure
// domain models with no database-specific dependencies or tags.
type File struct {
	ID        string    `json:"id"`
	StashID   string    `json:"stash_id"`
	FolderID  *string   `json:"folder_id,omitempty"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	DocType   string    `json:"doc_type"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileVersion is one immutable snapshot of a file's content. For a
// given file, Seq values form a contiguous run 1..N with no gaps or
// duplicates; the pair (FileID, Seq) is unique at the storage layer.
type FileVersion struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	Content   string    `json:"content"`
	Seq       int       `json:"seq"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Stash is a per-user container of files.
type Stash struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the owning principal for stashes.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

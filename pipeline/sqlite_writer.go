package pipeline

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"ctrip-reviews/models"
)

const reviewSchema = `
CREATE TABLE IF NOT EXISTS reviews (
	comment_id TEXT,
	author TEXT,
	date TEXT,
	score TEXT,
	content TEXT,
	location TEXT,
	tags TEXT,
	useful_count INTEGER DEFAULT 0,
	reply_count INTEGER DEFAULT 0,
	image_count INTEGER DEFAULT 0,
	identity TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_reviews_comment_id ON reviews(comment_id);
`

// SQLiteWriter persists reviews into a local SQLite database.
type SQLiteWriter struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteWriter opens (or creates) the database and runs the migration.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(reviewSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &SQLiteWriter{db: db}, nil
}

// Write inserts a batch of reviews inside one transaction.
func (sw *SQLiteWriter) Write(reviews []*models.Review) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	tx, err := sw.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO reviews
		(comment_id, author, date, score, content, location, tags, useful_count, reply_count, image_count, identity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, review := range reviews {
		if _, err := stmt.Exec(
			review.CommentID,
			review.Author,
			review.Date,
			review.Score,
			review.Content,
			review.Location,
			review.Tags,
			review.UsefulCount,
			review.ReplyCount,
			review.ImageCount,
			review.Identity,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert review: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (sw *SQLiteWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.db.Close()
}

// Validate ensures at least one review was written.
func (sw *SQLiteWriter) Validate() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	var count int
	if err := sw.db.QueryRow(`SELECT COUNT(*) FROM reviews`).Scan(&count); err != nil {
		return fmt.Errorf("count reviews: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("reviews table is empty")
	}
	return nil
}

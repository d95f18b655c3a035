// Package knowledge implements the node's document index: ingested text is
// stored in SQLite alongside its digit encoding and retrieved by TF-IDF
// ranking.
package knowledge

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	_ "modernc.org/sqlite"

	"github.com/kolibri-node/kolibri/digits"
)

// Index handles SQLite storage for ingested documents.
type Index struct {
	db *sql.DB
	mu sync.Mutex
}

// Result is one ranked hit.
type Result struct {
	ID     int64
	Source string
	Text   string
	Score  float64
}

// Open creates (or opens) the index database at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("knowledge: setting busy timeout: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS docs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	text TEXT NOT NULL,
	digits TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS terms (
	term TEXT NOT NULL,
	doc_id INTEGER NOT NULL REFERENCES docs(id),
	tf REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS terms_by_term ON terms(term);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("knowledge: creating schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// tokenize lowercases and splits text into letter/digit runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Ingest stores a document and its term frequencies. The text is also
// digit-encoded so journal tooling can replay it.
func (ix *Index) Ingest(source, text string) (int64, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0, fmt.Errorf("knowledge: document has no indexable terms")
	}
	ds, err := digits.EncodeText(text)
	if err != nil {
		return 0, fmt.Errorf("knowledge: encode document: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("knowledge: begin ingest: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO docs (source, text, digits) VALUES (?, ?, ?)",
		source, text, ds)
	if err != nil {
		return 0, fmt.Errorf("knowledge: insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	counts := make(map[string]int)
	for _, tok := range tokens {
		counts[tok]++
	}
	for term, c := range counts {
		tf := float64(c) / float64(len(tokens))
		if _, err := tx.Exec("INSERT INTO terms (term, doc_id, tf) VALUES (?, ?, ?)",
			term, id, tf); err != nil {
			return 0, fmt.Errorf("knowledge: insert term: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("knowledge: commit ingest: %w", err)
	}
	return id, nil
}

// Count returns the number of ingested documents.
func (ix *Index) Count() (int, error) {
	var n int
	err := ix.db.QueryRow("SELECT COUNT(*) FROM docs").Scan(&n)
	return n, err
}

// Query ranks documents against the query by TF-IDF and returns the top k.
func (ix *Index) Query(query string, k int) ([]Result, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 || k < 1 {
		return nil, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var total int
	if err := ix.db.QueryRow("SELECT COUNT(*) FROM docs").Scan(&total); err != nil {
		return nil, fmt.Errorf("knowledge: count documents: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	scores := make(map[int64]float64)
	for _, term := range tokens {
		var df int
		if err := ix.db.QueryRow(
			"SELECT COUNT(DISTINCT doc_id) FROM terms WHERE term = ?", term).Scan(&df); err != nil {
			return nil, fmt.Errorf("knowledge: term frequency: %w", err)
		}
		if df == 0 {
			continue
		}
		idf := math.Log(1 + float64(total)/float64(df))

		rows, err := ix.db.Query("SELECT doc_id, tf FROM terms WHERE term = ?", term)
		if err != nil {
			return nil, fmt.Errorf("knowledge: query term: %w", err)
		}
		for rows.Next() {
			var docID int64
			var tf float64
			if err := rows.Scan(&docID, &tf); err != nil {
				rows.Close()
				return nil, err
			}
			scores[docID] += tf * idf
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		var source, text string
		if err := ix.db.QueryRow(
			"SELECT source, text FROM docs WHERE id = ?", id).Scan(&source, &text); err != nil {
			return nil, fmt.Errorf("knowledge: load document %d: %w", id, err)
		}
		results = append(results, Result{ID: id, Source: source, Text: text, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

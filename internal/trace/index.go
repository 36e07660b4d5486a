package trace

import (
	"database/sql"
	"fmt"

	"github.com/atomize-hq/substrate/internal/substratelog"
	_ "modernc.org/sqlite"
)

// Index is an optional secondary index over span_id -> (trace file, byte offset).
// LoadSpanIndexed uses only the file path of an entry: it scans that whole file
// linearly and does not seek to the stored offset. Nothing in the module opens
// the index or calls Record. The JSONL file remains the authoritative source
// (spec.md §4.B, §8 "Rotation retention" still governs only the .jsonl files); a
// missing index entry, or a hinted file that does not hold the span, falls back
// to LoadSpanFromFile on the fallback path.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if absent) a sqlite index database alongside the trace
// log. Grounded on internal/store/store.go's WAL-mode sqlite.Open pattern.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trace index: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS span_offsets (
		span_id TEXT PRIMARY KEY,
		trace_path TEXT NOT NULL,
		byte_offset INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create span_offsets table: %w", err)
	}
	return &Index{db: db}, nil
}

func (idx *Index) Close() error { return idx.db.Close() }

// Record stores the byte offset at which spanID's line began in tracePath.
func (idx *Index) Record(spanID, tracePath string, offset int64) error {
	_, err := idx.db.Exec(
		`INSERT INTO span_offsets (span_id, trace_path, byte_offset) VALUES (?, ?, ?)
		 ON CONFLICT(span_id) DO UPDATE SET trace_path=excluded.trace_path, byte_offset=excluded.byte_offset`,
		spanID, tracePath, offset,
	)
	return err
}

// Lookup returns the (path, offset) hint for spanID, if indexed.
func (idx *Index) Lookup(spanID string) (path string, offset int64, ok bool) {
	row := idx.db.QueryRow(`SELECT trace_path, byte_offset FROM span_offsets WHERE span_id = ?`, spanID)
	if err := row.Scan(&path, &offset); err != nil {
		return "", 0, false
	}
	return path, offset, true
}

// LoadSpanIndexed consults idx first for the file that holds spanID, scans that
// file, and falls back to the linear scan of fallbackPath on a miss or when the
// hinted file cannot be read or does not hold the span. The stored offset is
// not used.
func LoadSpanIndexed(idx *Index, fallbackPath, spanID string) (*Span, error) {
	if idx != nil {
		if path, _, ok := idx.Lookup(spanID); ok {
			if s, err := LoadSpanFromFile(path, spanID); err == nil {
				return s, nil
			}
			substratelog.Debug("trace: index hint stale, falling back to linear scan", "span_id", spanID)
		}
	}
	return LoadSpanFromFile(fallbackPath, spanID)
}

package shmstore

// deptable.go persists the arena's dependency-edge table to a blob file or
// a SQLite database, and loads it back. A table that was itself loaded
// from a saved state refuses further Save* calls — callers must use
// Update* instead.
//
// The blob format is a small fixed-header framing (magic + revision +
// count, encoded field-by-field via encoding/binary). SQLite persistence
// uses modernc.org/sqlite (pure Go, no cgo) through database/sql.
//
// © 2025 shmstore authors. MIT License.

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"

	"github.com/Voskan/shmstore/internal/arena"
)

// ErrMustUseUpdate is returned by Save* when the dependency table was
// itself loaded from a saved state; callers must call the matching
// Update* function instead.
var ErrMustUseUpdate = errors.New("shmstore: table loaded from saved state, use Update* instead")

const (
	depBlobMagic      = "DEP1"
	depBlobHeaderSize = 16 // magic(4) + revision(4) + edgeCount(8)
)

// DepTable wraps a Handle's arena with the loaded-from-saved-state flag
// Save* checks.
type DepTable struct {
	h              *Handle
	loadedFromSave bool
}

// NewDepTable wraps h for dependency-table persistence. The returned
// DepTable is not yet flagged as loaded; only Load* sets that flag.
func NewDepTable(h *Handle) *DepTable {
	return &DepTable{h: h}
}

func (d *DepTable) eachEdge(fn func(from, to [16]byte)) {
	d.h.arena.EachEdge(fn)
}

// SaveDepTableBlob writes every edge currently in the dependency table to
// path in the DEP1 blob format, tagged with revision. If reset is true an
// existing file at path is truncated first. Returns the number of edges
// written.
func (d *DepTable) SaveDepTableBlob(path string, revision uint32, reset bool) (int, error) {
	if d.loadedFromSave {
		return 0, ErrMustUseUpdate
	}
	if revision == 0 {
		return 0, arena.ErrRevisionLengthZero
	}
	flags := os.O_WRONLY | os.O_CREATE
	if reset {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return writeDepBlob(f, revision, d)
}

func writeDepBlob(f *os.File, revision uint32, d *DepTable) (int, error) {
	var edges [][2][16]byte
	d.eachEdge(func(from, to [16]byte) {
		edges = append(edges, [2][16]byte{from, to})
	})

	header := make([]byte, depBlobHeaderSize)
	copy(header[0:4], depBlobMagic)
	binary.LittleEndian.PutUint32(header[4:8], revision)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(edges)))
	if _, err := f.Write(header); err != nil {
		return 0, err
	}

	record := make([]byte, 32)
	for _, e := range edges {
		copy(record[0:16], e[0][:])
		copy(record[16:32], e[1][:])
		if _, err := f.Write(record); err != nil {
			return 0, err
		}
	}
	return len(edges), nil
}

// LoadDepTableBlob reads edges from a DEP1 blob at path and inserts them
// into the arena's dependency table via AddEdge. Unless ignoreVersion is
// set, a magic mismatch is a hard error. The returned DepTable is flagged
// as loaded-from-saved-state, so subsequent Save* calls on it fail with
// ErrMustUseUpdate.
func LoadDepTableBlob(h *Handle, path string, ignoreVersion bool) (*DepTable, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	header := make([]byte, depBlobHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, 0, err
	}
	if !ignoreVersion && string(header[0:4]) != depBlobMagic {
		return nil, 0, fmt.Errorf("shmstore: bad dep-table blob magic %q", header[0:4])
	}
	edgeCount := binary.LittleEndian.Uint64(header[8:16])

	record := make([]byte, 32)
	n := 0
	for i := uint64(0); i < edgeCount; i++ {
		if _, err := io.ReadFull(f, record); err != nil {
			return nil, n, err
		}
		var from, to [16]byte
		copy(from[:], record[0:16])
		copy(to[:], record[16:32])
		if _, err := h.arena.AddEdge(from, to); err != nil {
			return nil, n, err
		}
		n++
	}
	return &DepTable{h: h, loadedFromSave: true}, n, nil
}

const depSQLiteSchema = `
CREATE TABLE IF NOT EXISTS edges (
	from_digest BLOB NOT NULL,
	to_digest   BLOB NOT NULL,
	revision    INTEGER NOT NULL
);
`

// SaveDepTableSQLite writes every edge to a single edges(from_digest,
// to_digest, revision) table in the SQLite database at path. If replace is
// true, every existing row is deleted first; otherwise rows are
// appended. Returns the number of edges written.
func (d *DepTable) SaveDepTableSQLite(path string, revision uint32, replace bool) (int, error) {
	if d.loadedFromSave {
		return 0, ErrMustUseUpdate
	}
	return d.writeDepSQLite(path, revision, replace)
}

// UpdateDepTableSQLite is the only persistence path allowed on a DepTable
// that was itself loaded from a saved state.
func (d *DepTable) UpdateDepTableSQLite(path string, revision uint32, replace bool) (int, error) {
	return d.writeDepSQLite(path, revision, replace)
}

func (d *DepTable) writeDepSQLite(path string, revision uint32, replace bool) (int, error) {
	if revision == 0 {
		return 0, arena.ErrRevisionLengthZero
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := db.Exec(depSQLiteSchema); err != nil {
		return 0, err
	}
	if replace {
		if _, err := db.Exec(`DELETE FROM edges`); err != nil {
			return 0, err
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`INSERT INTO edges(from_digest, to_digest, revision) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	n := 0
	var insertErr error
	d.eachEdge(func(from, to [16]byte) {
		if insertErr != nil {
			return
		}
		if _, insertErr = stmt.Exec(from[:], to[:], revision); insertErr != nil {
			return
		}
		n++
	})
	if insertErr != nil {
		tx.Rollback()
		return 0, insertErr
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// LoadDepTableSQLite reads every edge from path's edges table and inserts
// it into the arena's dependency table. ignoreVersion is accepted for
// signature parity with LoadDepTableBlob; the SQLite format carries no
// separate file-level version to check.
func LoadDepTableSQLite(h *Handle, path string, ignoreVersion bool) (*DepTable, int, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, 0, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT from_digest, to_digest FROM edges`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var fromB, toB []byte
		if err := rows.Scan(&fromB, &toB); err != nil {
			return nil, n, err
		}
		var from, to [16]byte
		copy(from[:], fromB)
		copy(to[:], toB)
		if _, err := h.arena.AddEdge(from, to); err != nil {
			return nil, n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, n, err
	}
	return &DepTable{h: h, loadedFromSave: true}, n, nil
}

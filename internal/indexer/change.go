package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/Jj0520/FileWise-sub000/internal/storage"
)

// Decision is the outcome of change detection for one file
type Decision int

const (
	// Reindex means the file must be extracted, chunked and embedded again
	Reindex Decision = iota
	// Unchanged means the stored record already matches the file bytes
	Unchanged
)

func (d Decision) String() string {
	if d == Unchanged {
		return "unchanged"
	}
	return "reindex"
}

// HashFile computes the hex SHA-256 of the full file contents
func HashFile(path string) (digest string, size int64, modTime time.Time, err error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, time.Time{}, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return "", 0, time.Time{}, err
	}

	h := sha256.New()
	n, err := io.Copy(h, file)
	if err != nil {
		return "", 0, time.Time{}, err
	}

	return hex.EncodeToString(h.Sum(nil)), n, info.ModTime(), nil
}

// Decide compares the stored record against a freshly computed digest.
// Size and modification time are never consulted.
func Decide(stored *storage.FileRecord, digest string, force bool) Decision {
	if force || stored == nil {
		return Reindex
	}
	if stored.Hash != "" && stored.Hash == digest {
		return Unchanged
	}
	return Reindex
}

package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxDepth bounds directory recursion below the scan root
const DefaultMaxDepth = 32

// skipDirs are system and tool directories that never hold user documents
var skipDirs = map[string]bool{
	"$RECYCLE.BIN":              true,
	"System Volume Information": true,
	".git":                      true,
	".svn":                      true,
	".hg":                       true,
	"node_modules":              true,
	".Trash":                    true,
	".Trashes":                  true,
	".Spotlight-V100":           true,
	".fseventsd":                true,
	"proc":                      true,
	"__pycache__":               true,
	".cache":                    true,
}

// ScanResult is the set of indexable files found under a root, split by pool
type ScanResult struct {
	PDFs    []string
	Others  []string
	Skipped int // Unreadable entries, symlinks and directories past the depth cap
}

// Total returns the number of files to process
func (s *ScanResult) Total() int {
	return len(s.PDFs) + len(s.Others)
}

// Scan walks root and keeps the files accepted by supports. Unreadable
// subtrees are logged and skipped; only an unreadable root is an error.
func Scan(ctx context.Context, root string, maxDepth int, supports func(path string) bool, logger *zap.Logger) (*ScanResult, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	result := &ScanResult{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == root {
				return err
			}
			logger.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			result.Skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			result.Skipped++
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			if depthOf(root, path) > maxDepth {
				result.Skipped++
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || isOfficeLockFile(d.Name()) || !supports(path) {
			return nil
		}

		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			result.PDFs = append(result.PDFs, path)
		} else {
			result.Others = append(result.Others, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return result, nil
}

// depthOf counts the path elements of path below root
func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// isOfficeLockFile matches the "~$name.docx" owner files Office leaves next to open documents
func isOfficeLockFile(name string) bool {
	return strings.HasPrefix(name, "~$")
}

// Package ingest finds documents on disk and feeds them through extraction.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docminer/constants"
)

type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// ExtSet builds an extension filter from a list such as ["pdf", ".TXT"]. An empty list
// yields nil, meaning every supported document type.
func ExtSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			out[e] = struct{}{}
		}
	}
	return out
}

// ScanDirectory walks root and returns the matching files in lexical order. Hidden files
// and directories are skipped when skipHidden is set; unreadable entries are counted and
// skipped.
func ScanDirectory(root string, exts map[string]struct{}, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var paths []string
	var stats DirStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !allowed(path, exts) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

// allowed filters by exts, or by the supported document types when exts is nil.
func allowed(path string, exts map[string]struct{}) bool {
	if exts == nil {
		_, err := constants.DocumentTypeFromSource(path)
		return err == nil
	}
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

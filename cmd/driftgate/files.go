package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/ruizrica/driftgate/internal/gate"
)

// maxFileSize caps how much of a single file is loaded for analysis.
// Larger files are almost always generated artifacts.
const maxFileSize = 1 << 20 // 1MB

var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"target":       true,
	".idea":        true,
	".vscode":      true,
}

// collectFiles gathers the analysis input set. In incremental mode only
// files with uncommitted changes in the enclosing git worktree are
// loaded; otherwise the directory is walked.
func collectFiles(root string, incremental bool, logger *zap.Logger) ([]gate.File, error) {
	if incremental {
		return collectChangedFiles(root, logger)
	}
	return walkFiles(root, logger)
}

func walkFiles(root string, logger *zap.Logger) ([]gate.File, error) {
	var files []gate.File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		f, ok, err := loadFile(root, rel)
		if err != nil {
			logger.Warn("skipping unreadable file", zap.String("path", rel), zap.Error(err))
			return nil
		}
		if ok {
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// collectChangedFiles returns the files reported as modified, added, or
// untracked by git status. Deleted files are excluded since there is no
// content left to analyze.
func collectChangedFiles(root string, logger *zap.Logger) ([]gate.File, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("incremental mode requires a git repository at %s: %w", root, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("reading worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading git status: %w", err)
	}

	wtRoot := wt.Filesystem.Root()
	var files []gate.File
	for path, st := range status {
		if st.Worktree == git.Deleted || st.Staging == git.Deleted {
			continue
		}
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		abs := filepath.Join(wtRoot, filepath.FromSlash(path))
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			// Changed outside the requested path.
			continue
		}
		f, ok, err := loadFile(root, rel)
		if err != nil {
			logger.Warn("skipping unreadable file", zap.String("path", rel), zap.Error(err))
			continue
		}
		if ok {
			files = append(files, f)
		}
	}
	logger.Debug("incremental file set", zap.Int("count", len(files)))
	return files, nil
}

// loadFile reads a file for analysis. The second return is false when
// the file was skipped (too large or binary).
func loadFile(root, rel string) (gate.File, bool, error) {
	abs := filepath.Join(root, rel)
	info, err := os.Stat(abs)
	if err != nil {
		return gate.File{}, false, err
	}
	if info.Size() > maxFileSize {
		return gate.File{}, false, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return gate.File{}, false, err
	}
	if bytes.IndexByte(data, 0) >= 0 {
		// Binary content.
		return gate.File{}, false, nil
	}
	return gate.File{Path: filepath.ToSlash(rel), Content: string(data)}, true, nil
}

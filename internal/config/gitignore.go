package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// gitignoreContent is the standard .gitignore content for project-local .uploadwiz/ directories.
const gitignoreContent = `# uploadwiz project-local data (auto-generated)
# Config is tracked; stash receipts and logs are not.
ledger/
*.json.tmp
*.log
`

// GitignoreContent returns the standard .gitignore content used for
// project-local .uploadwiz/ directories. Exported for testing.
func GitignoreContent() string {
	return gitignoreContent
}

// EnsureGitignore writes the standard .gitignore into dir unless one is
// already there, creating dir as needed. It reports whether a file was
// written. An existing .gitignore is never touched.
func EnsureGitignore(dir string) (bool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, ".gitignore")
	//nolint:gosec // .gitignore must be world-readable (0644).
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating .gitignore at %s: %w", path, err)
	}

	if _, err = f.WriteString(gitignoreContent); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return false, fmt.Errorf("writing .gitignore at %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return false, fmt.Errorf("closing .gitignore at %s: %w", path, err)
	}
	return true, nil
}

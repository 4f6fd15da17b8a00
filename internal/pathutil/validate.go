// Package pathutil resolves record locations and keeps them inside the record root.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for error messages.
// For example, "/data/record/model/dep/Research1/ModelEngineRecord.csv" becomes
// ".../Research1/ModelEngineRecord.csv".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// EngineRecordPath joins root/engine/file and rejects engine names that
// would resolve outside root (absolute names, "..", symlinks leaving root).
func EngineRecordPath(root, engine, file string) (string, error) {
	if engine == "" {
		return "", fmt.Errorf("engine name is empty")
	}
	if strings.ContainsRune(engine, '\x00') || strings.ContainsRune(file, '\x00') {
		return "", fmt.Errorf("engine %q: path contains null byte", engine)
	}
	if filepath.IsAbs(engine) {
		return "", fmt.Errorf("engine %q: absolute engine paths are not allowed", engine)
	}

	path := filepath.Join(root, engine, file)
	if err := WithinRoot(path, root); err != nil {
		return "", fmt.Errorf("engine %q: %w", engine, err)
	}
	return path, nil
}

// WithinRoot checks that path is root itself or lies below it after cleaning
// and resolving symlinks on the deepest existing ancestor.
func WithinRoot(path, root string) error {
	if path == "" {
		return fmt.Errorf("path validation failed: path is empty")
	}
	if root == "" {
		return fmt.Errorf("path validation failed: root is empty")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}
	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve root: %w", err)
	}

	resolvedDir, err := resolveExistingParent(filepath.Dir(absPath))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolvedPath := filepath.Join(resolvedDir, filepath.Base(absPath))

	resolvedRoot, err := resolveExistingParent(absRoot)
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve root: %w", err)
	}

	if !isSubpath(resolvedPath, resolvedRoot) {
		return fmt.Errorf("path validation failed: %q is outside %q", RedactPath(absPath), RedactPath(absRoot))
	}
	return nil
}

// resolveExistingParent walks up to the deepest existing ancestor, resolves
// symlinks on it, then re-appends the missing tail.
func resolveExistingParent(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}

	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath checks whether path is equal to or below base.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// "/tmp/foo" must not match "/tmp/foobar"
	prefix := base + string(os.PathSeparator)
	return strings.HasPrefix(path, prefix)
}

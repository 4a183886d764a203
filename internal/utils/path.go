package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// RelPathSep separates the segments of a tree relative path, independent of the OS.
const RelPathSep = "/"

// ResolvePath expands a leading "~" and returns the cleaned absolute form of path.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.Clean(absPath), nil
}

func EnsureParent(path string) error {
	return EnsureDir(filepath.Dir(path))
}

func EnsureDir(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// JoinRelPath appends name to a tree relative prefix. The empty prefix is the tree root.
func JoinRelPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + RelPathSep + name
}

// SplitRelPath splits a tree relative path into its directory segments and the final name.
func SplitRelPath(relPath string) (dirs []string, name string) {
	parts := strings.Split(relPath, RelPathSep)
	return parts[:len(parts)-1], parts[len(parts)-1]
}

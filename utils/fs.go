package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"canvascli/internal"
)

// FileOperations provides file system utilities
type FileOperations struct{}

// NewFileOperations creates a new FileOperations instance
func NewFileOperations() *FileOperations {
	return &FileOperations{}
}

// ValidateSubmissionFile checks that a local file exists, is a regular file,
// is readable, and is non-empty. Runs before any network call so a bad path
// never triggers a partial upload.
func (f *FileOperations) ValidateSubmissionFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return internal.NewValidationError("file", fmt.Sprintf("file does not exist: %s", path))
	}
	if err != nil {
		return internal.NewValidationError("file", fmt.Sprintf("cannot stat file %s: %v", path, err))
	}

	if info.IsDir() {
		return internal.NewValidationError("file", fmt.Sprintf("%s is a directory, not a file", path))
	}

	if info.Size() == 0 {
		return internal.NewValidationError("file", fmt.Sprintf("file is empty: %s", path)).
			WithSuggestion("Canvas rejects empty submissions; check you saved the right file")
	}

	handle, err := os.Open(path)
	if err != nil {
		return internal.NewValidationError("file", fmt.Sprintf("cannot read file %s: %v", path, err))
	}
	handle.Close()

	return nil
}

// EnsureWritableDir creates the directory if needed and verifies it accepts
// writes with a probe file.
func (f *FileOperations) EnsureWritableDir(dir string) error {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return internal.NewValidationError("output_dir", fmt.Sprintf("cannot create directory %s: %v", dir, err))
	}

	probe := filepath.Join(dir, ".canvascli_write_test")
	handle, err := os.Create(probe)
	if err != nil {
		return internal.NewValidationError("output_dir", fmt.Sprintf("cannot write to directory %s: %v", dir, err))
	}
	handle.Close()
	os.Remove(probe)

	return nil
}

// FileExists checks if a file exists
func (f *FileOperations) FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file
func (f *FileOperations) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// AtomicRename performs an atomic file rename operation
func (f *FileOperations) AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// CleanupPartial removes a leftover .part file, ignoring a missing one
func (f *FileOperations) CleanupPartial(destPath string) {
	os.Remove(destPath + ".part")
}

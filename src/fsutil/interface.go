package fsutil

// FileStore provides an interface for file system operations
type FileStore interface {
	// ReadFile reads a file and returns its contents
	ReadFile(path string) ([]byte, error)

	// ListFiles returns the regular files under path, sorted by name. A path
	// naming a single file yields just that file.
	ListFiles(path string) ([]string, error)
}

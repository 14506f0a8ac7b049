// Package storage defines the vault file-system abstraction.
package storage

// DirEntry describes one entry returned by ListDirectory.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// Info is the result of an existence check.
type Info struct {
	Exists bool `json:"exists"`
	IsDir  bool `json:"is_dir"`
}

// Provider is the interface for vault file operations. The indexing core
// consumes only the read side (Exists, ListDirectory, Read); the write
// operations exist for the surrounding application.
type Provider interface {
	// Exists reports whether path (relative to vault root) exists and its kind.
	Exists(path string) (Info, error)
	// ListDirectory returns the immediate entries of dir (relative to vault root).
	ListDirectory(dir string) ([]DirEntry, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to vault root).
	Move(oldPath, newPath string) error
}

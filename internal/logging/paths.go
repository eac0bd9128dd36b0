package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.mailsearch/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mailsearch", "logs")
	}
	return filepath.Join(home, ".mailsearch", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "mailsearch.log")
}

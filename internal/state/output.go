package state

import (
	"os"
	"path/filepath"
)

// SaveOutput writes one finalized file under outputDir, creating parent
// directories as needed. The filename is server-supplied and therefore
// untrusted: it must validate as a contained relative path. Returns the
// absolute path written.
func SaveOutput(outputDir, filename, content string, executable bool) (string, error) {
	target, err := SafeJoin(outputDir, filename)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}

	mode := os.FileMode(0644)
	if executable {
		mode = 0755
	}
	if err := os.WriteFile(target, []byte(content), mode); err != nil {
		return "", err
	}
	return target, nil
}

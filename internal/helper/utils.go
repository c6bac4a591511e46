package helper

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// SanitizeFilename reduces an uploaded filename to its base name so it can
// never escape the upload directory. Returns "" for names that carry no
// usable base at all.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// SplitName splits a filename into stem and extension ("notes.txt" ->
// "notes", ".txt"). The extension keeps its leading dot and is lowercased.
func SplitName(name string) (string, string) {
	ext := strings.ToLower(filepath.Ext(name))
	return strings.TrimSuffix(name, filepath.Ext(name)), ext
}

package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	apperr "study-rag/internal/pkg/errors"

	"study-rag/internal/helper"
	"study-rag/internal/models"
)

// supportedExtensions is the upload allow-list with human-readable type
// descriptions, keyed by lowercased extension including the dot.
var supportedExtensions = map[string]string{
	".pdf":  "PDF Document",
	".txt":  "Text File",
	".md":   "Markdown File",
	".doc":  "Word Document",
	".docx": "Word Document",
	".xls":  "Excel Spreadsheet",
	".xlsx": "Excel Spreadsheet",
}

// IsSupported reports whether the filename carries an allow-listed
// extension. A missing extension is not supported.
func IsSupported(filename string) bool {
	_, ext := helper.SplitName(filename)
	_, ok := supportedExtensions[ext]
	return ok
}

// FileType returns the type description for a filename.
func FileType(filename string) string {
	_, ext := helper.SplitName(filename)
	if desc, ok := supportedExtensions[ext]; ok {
		return desc
	}
	return "Unknown File Type"
}

// ValidateFilename rejects filenames outside the allow-list with
// ErrUnsupportedFileType carrying the offending extension.
func ValidateFilename(filename string) (string, error) {
	name := helper.SanitizeFilename(filename)
	if name == "" {
		return "", fmt.Errorf("%w: empty filename", apperr.ErrValidation)
	}
	_, ext := helper.SplitName(name)
	if _, ok := supportedExtensions[ext]; !ok {
		if ext == "" {
			ext = "(none)"
		}
		return "", fmt.Errorf("%w: %s", apperr.ErrUnsupportedFileType, ext)
	}
	return name, nil
}

// SupportedExtensions returns a copy of the allow-list.
func SupportedExtensions() map[string]string {
	out := make(map[string]string, len(supportedExtensions))
	for k, v := range supportedExtensions {
		out[k] = v
	}
	return out
}

// Store persists uploaded documents in a single directory. The stored
// filename doubles as the file ID; duplicate names get a numeric suffix
// (notes.txt, notes_1.txt, ...) so nothing is overwritten silently.
type Store struct {
	dir     string
	maxSize int64
}

func NewStore(dir string, maxSize int64) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save validates, sanitizes and writes an uploaded file, returning its
// metadata. The reader is consumed fully; files over the size limit are
// rejected without leaving anything on disk.
func (s *Store) Save(filename string, r io.Reader) (models.UploadedFile, error) {
	name, err := ValidateFilename(filename)
	if err != nil {
		return models.UploadedFile{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return models.UploadedFile{}, fmt.Errorf("%w: limit %d bytes", apperr.ErrFileTooLarge, s.maxSize)
	}

	stored, out, err := s.createUnique(name)
	if err != nil {
		return models.UploadedFile{}, err
	}
	path := filepath.Join(s.dir, stored)
	if _, err := out.Write(data); err != nil {
		out.Close()
		os.Remove(path)
		return models.UploadedFile{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return models.UploadedFile{}, fmt.Errorf("failed to write file: %w", err)
	}
	log.Info().Str("file", path).Int("bytes", len(data)).Msg("File saved")

	return s.metadata(stored, name)
}

// createUnique claims the first free name in the notes.txt, notes_1.txt,
// notes_2.txt, ... sequence. O_EXCL makes the claim atomic, so concurrent
// uploads of the same filename can never overwrite each other.
func (s *Store) createUnique(name string) (string, *os.File, error) {
	stem, ext := helper.SplitName(name)
	candidate := name
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(s.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return candidate, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, fmt.Errorf("failed to create file: %w", err)
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

// List returns every stored file's metadata, newest first.
func (s *Store) List() ([]models.UploadedFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list upload dir: %w", err)
	}

	var files []models.UploadedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := s.metadata(e.Name(), e.Name())
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("Skipping unreadable file")
			continue
		}
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	return files, nil
}

// Get returns the metadata for one stored file by ID.
func (s *Store) Get(id string) (models.UploadedFile, error) {
	if !validID(id) {
		return models.UploadedFile{}, fmt.Errorf("%w: invalid file id", apperr.ErrValidation)
	}
	path := filepath.Join(s.dir, id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return models.UploadedFile{}, fmt.Errorf("%w: file %q", apperr.ErrNotFound, id)
		}
		return models.UploadedFile{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return s.metadata(id, id)
}

// Delete removes a stored file. Cascading removal of the file's vectors is
// the orchestrator's job and happens before this call.
func (s *Store) Delete(id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: invalid file id", apperr.ErrValidation)
	}
	path := filepath.Join(s.dir, id)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: file %q", apperr.ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	log.Info().Str("file", path).Msg("File deleted")
	return nil
}

func (s *Store) metadata(id, original string) (models.UploadedFile, error) {
	path := filepath.Join(s.dir, id)
	stat, err := os.Stat(path)
	if err != nil {
		return models.UploadedFile{}, err
	}
	_, ext := helper.SplitName(id)
	return models.UploadedFile{
		ID:         id,
		Filename:   original,
		StoredPath: path,
		Extension:  ext,
		FileType:   FileType(id),
		SizeBytes:  stat.Size(),
		UploadedAt: stat.ModTime(),
	}, nil
}

func validID(id string) bool {
	return id != "" && id == helper.SanitizeFilename(id) &&
		!strings.ContainsAny(id, "/\\")
}

package errors

import "errors"

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrIndexUnavailable    = errors.New("vector index unavailable")
	ErrModelUnavailable    = errors.New("model service unavailable")
	ErrModelGeneration     = errors.New("model generation failed")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid request")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

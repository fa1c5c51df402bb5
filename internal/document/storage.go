// Package document handles uploaded document files: saving multipart
// uploads to local disk, validating they are readable PDFs, and removing
// them once an analysis finishes.
package document

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/adityakurhade/finsight/internal/config"
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("document exceeds maximum size")
	// ErrNotPDF is returned when the uploaded file fails PDF validation.
	ErrNotPDF = errors.New("document is not a valid PDF")
)

// Storage writes uploaded documents under a single directory, one file per
// task so concurrent uploads never collide.
type Storage struct {
	dir      string
	maxBytes int64
	validate func(path string) error
	logger   *slog.Logger
}

type StorageOption func(*Storage)

// WithValidator replaces PDF validation. Tests use it to feed Storage
// synthetic bytes; producing a byte-exact valid PDF fixture is not worth
// the brittleness.
func WithValidator(fn func(path string) error) StorageOption {
	return func(s *Storage) { s.validate = fn }
}

func NewStorage(cfg config.UploadConfig, logger *slog.Logger, opts ...StorageOption) (*Storage, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	s := &Storage{
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		validate: func(path string) error { return api.ValidateFile(path, nil) },
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory documents are stored under.
func (s *Storage) Dir() string { return s.dir }

// Save streams r to disk under a task-scoped name and validates the result
// is a well-formed PDF. On any failure the partial file is removed.
func (s *Storage) Save(taskID uuid.UUID, filename string, r io.Reader) (string, int64, error) {
	path := filepath.Join(s.dir, taskID.String()+".pdf")

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("creating document file: %w", err)
	}

	// Read one byte past the limit so we can tell "exactly max" from "over".
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.Remove(path)
		return "", 0, fmt.Errorf("writing document file: %w", err)
	}
	if n > s.maxBytes {
		s.Remove(path)
		return "", 0, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.maxBytes)
	}

	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		s.Remove(path)
		return "", 0, fmt.Errorf("%w: unexpected extension %q", ErrNotPDF, filepath.Ext(filename))
	}
	if err := s.validate(path); err != nil {
		s.Remove(path)
		return "", 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	return path, n, nil
}

// Remove deletes a stored document. Missing files are not an error: cleanup
// runs after every attempt and the file may already be gone.
func (s *Storage) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove document", "path", path, "error", err)
	}
}

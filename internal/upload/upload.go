// Package upload validates multipart image files and stores them on disk.
package upload

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrTooLarge is returned for files above the size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrUnsupportedType is returned when the content is not an accepted image type.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// AllowedMimeTypes lists the accepted image types, detected from content.
var AllowedMimeTypes = []string{
	"image/jpeg", "image/jpg", "image/png",
	"image/gif", "image/bmp", "image/webp",
}

// File is a validated upload held in memory.
type File struct {
	Field        string
	OriginalName string
	ContentType  string
	Extension    string
	Data         []byte
}

// Stored is a validated upload written to disk.
type Stored struct {
	Path     string
	Filename string
	File     *File
}

// Store validates uploads and writes them under a directory.
type Store struct {
	dir     string
	maxSize int64
	now     func() time.Time
}

// NewStore returns a Store writing into dir and accepting files up to maxSize bytes.
func NewStore(dir string, maxSize int64) *Store {
	return &Store{dir: dir, maxSize: maxSize, now: time.Now}
}

// MaxSize is the per-file limit in bytes.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Read validates fh and loads it into memory.
func (s *Store) Read(fh *multipart.FileHeader, field string) (*File, error) {
	if fh.Size > s.maxSize {
		return nil, ErrTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}

	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), AllowedMimeTypes...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, detected.String())
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = detected.Extension()
	}
	return &File{
		Field:        field,
		OriginalName: fh.Filename,
		ContentType:  detected.String(),
		Extension:    ext,
		Data:         data,
	}, nil
}

// Save validates fh and writes it as <field>-<unix-ms>-<random><ext>.
func (s *Store) Save(fh *multipart.FileHeader, field string) (*Stored, error) {
	file, err := s.Read(fh, field)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	filename := field + "-" + strconv.FormatInt(s.now().UnixMilli(), 10) + "-" +
		strconv.FormatInt(rand.Int64N(1_000_000_000), 10) + file.Extension
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	return &Stored{Path: path, Filename: filename, File: file}, nil
}

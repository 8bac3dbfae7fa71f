// Package acquisition resolves the document image of an identification request
// into decoded pixels and a file in the identity uploads directory.
package acquisition

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/imageprocessor"
)

// Origin tells where a DocumentImage came from.
type Origin string

const (
	OriginBase64    Origin = "base64"
	OriginRemoteURL Origin = "remote-url"
	OriginUpload    Origin = "upload"
)

// Messages returned to API callers.
const (
	MsgBase64Failed   = "Failed to load base64 image"
	MsgRemoteFailed   = "Failed to load image from HTTP URL"
	MsgInvalidFormat  = "Invalid image format or path"
	MsgUploadFailed   = "Failed to load uploaded image"
	MsgUploadsDirFail = "Server configuration error"
)

// Upload is a multipart file already stored on disk.
type Upload struct {
	Path     string
	Filename string
}

// Request is the raw input of an identification call.
type Request struct {
	// Image is the string form field: a data URI, an http(s) URL, or empty.
	Image  string
	Upload *Upload
}

// DocumentImage is an acquired image and the file backing it.
type DocumentImage struct {
	Origin   Origin
	Path     string
	Filename string
	Data     []byte
	Image    image.Image
}

// Acquirer implements the input discrimination rules.
type Acquirer struct {
	dir     string
	fetcher Fetcher
	codec   imageprocessor.Codec
	now     func() time.Time
	logger  *zap.Logger
}

// NewAcquirer builds an Acquirer writing into dir.
func NewAcquirer(dir string, fetcher Fetcher, codec imageprocessor.Codec, logger *zap.Logger) *Acquirer {
	return &Acquirer{
		dir:     dir,
		fetcher: fetcher,
		codec:   codec,
		now:     time.Now,
		logger:  logger.Named("acquisition"),
	}
}

// Dir is the identity uploads directory.
func (a *Acquirer) Dir() string {
	return a.dir
}

// EnsureDir creates the uploads directory tree if needed.
func (a *Acquirer) EnsureDir() error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return apperror.Internal(MsgUploadsDirFail, fmt.Errorf("create uploads dir: %w", err))
	}
	return nil
}

// Acquire resolves req in priority order: data URI, http URL, bare file name, upload.
// Files written here are owned by the caller, who removes or renames them.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (*DocumentImage, error) {
	if err := a.EnsureDir(); err != nil {
		return nil, err
	}

	source := strings.TrimSpace(req.Image)
	switch {
	case strings.HasPrefix(source, "data:image"):
		return a.fromDataURI(source)
	case strings.HasPrefix(source, "http"):
		return a.fromURL(ctx, source)
	case hasImageExtension(source):
		return nil, apperror.Acquisition(MsgInvalidFormat, nil)
	default:
		return a.fromUpload(req.Upload)
	}
}

func (a *Acquirer) fromDataURI(uri string) (*DocumentImage, error) {
	data, err := decodeDataURI(uri)
	if err != nil {
		return nil, apperror.Acquisition(MsgBase64Failed, err)
	}
	doc, err := a.persist(OriginBase64, "temp", data)
	if err != nil {
		return nil, apperror.Acquisition(MsgBase64Failed, err)
	}
	return doc, nil
}

func (a *Acquirer) fromURL(ctx context.Context, imageURL string) (*DocumentImage, error) {
	data, err := a.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return nil, apperror.Acquisition(MsgRemoteFailed, err)
	}
	doc, err := a.persist(OriginRemoteURL, "temp_http", data)
	if err != nil {
		return nil, apperror.Acquisition(MsgRemoteFailed, err)
	}
	return doc, nil
}

func (a *Acquirer) fromUpload(upload *Upload) (*DocumentImage, error) {
	if upload == nil || upload.Path == "" {
		return nil, apperror.Acquisition(MsgUploadFailed, errors.New("no file uploaded"))
	}
	if _, err := os.Stat(upload.Path); err != nil {
		return nil, apperror.Acquisition(MsgUploadFailed, err)
	}
	img, data, err := a.codec.DecodeFile(upload.Path)
	if err != nil {
		return nil, apperror.Acquisition(MsgUploadFailed, err)
	}
	filename := upload.Filename
	if filename == "" {
		filename = filepath.Base(upload.Path)
	}
	return &DocumentImage{Origin: OriginUpload, Path: upload.Path, Filename: filename, Data: data, Image: img}, nil
}

// persist decodes data before writing it, so undecodable input never reaches the disk.
func (a *Acquirer) persist(origin Origin, prefix string, data []byte) (*DocumentImage, error) {
	img, format, err := a.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	filename := a.tempFilename(prefix, extensionFor(format))
	path := filepath.Join(a.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	a.logger.Debug("temp image written", zap.String("origin", string(origin)), zap.String("path", path))
	return &DocumentImage{Origin: origin, Path: path, Filename: filename, Data: data, Image: img}, nil
}

func (a *Acquirer) tempFilename(prefix, ext string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return prefix + "_" + strconv.FormatInt(a.now().UnixMilli(), 10) + "_" + random + ext
}

func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, errors.New("data URI has no payload")
	}
	meta, payload := uri[:comma], uri[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("data URI is not base64 encoded")
	}
	payload = strings.TrimSpace(payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
	}
	return data, nil
}

func hasImageExtension(source string) bool {
	lower := strings.ToLower(source)
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func extensionFor(format string) string {
	switch format {
	case "jpeg", "":
		return ".jpg"
	default:
		return "." + format
	}
}

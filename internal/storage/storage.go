// Package storage keeps user documents in Azure Blob Storage. Buckets map to
// containers and objects to block blobs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/logging"
)

// Buckets used by the profile, user and admin flows.
const (
	BucketAdmins     = "admins"
	BucketUsers      = "users"
	BucketPortfolio  = "portfolio"
	BucketBanks      = "banks"
	BucketPersonalID = "personalid"
	BucketPassport   = "passport"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Object is a file to store.
type Object struct {
	OriginalName string
	ContentType  string
	Data         []byte
}

// ObjectStore is the storage surface used by the application.
type ObjectStore interface {
	Upload(ctx context.Context, bucket string, obj Object) (string, error)
	Download(ctx context.Context, bucket, name string) ([]byte, error)
	Exists(ctx context.Context, bucket, name string) (bool, error)
	Replace(ctx context.Context, bucket, name string, obj Object) error
	EnsureBucket(ctx context.Context, bucket string) error
}

// AzureConfig selects the storage account. Endpoint overrides the public
// https://<account>.blob.core.windows.net URL, e.g. for Azurite.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Endpoint    string
}

// AzureStore implements ObjectStore on azblob.
type AzureStore struct {
	client *azblob.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewAzureStore authenticates with a shared key.
func NewAzureStore(cfg AzureConfig, logger *zap.Logger) (*AzureStore, error) {
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}
	return &AzureStore{client: client, logger: logger.Named("storage"), now: time.Now}, nil
}

// Upload stores obj under <unix-ms>-<sanitized original name> and returns that name.
func (s *AzureStore) Upload(ctx context.Context, bucket string, obj Object) (string, error) {
	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return "", err
	}
	name := ObjectName(obj.OriginalName, s.now())
	if err := s.put(ctx, bucket, name, obj); err != nil {
		return "", err
	}
	return name, nil
}

// Download reads an object fully.
func (s *AzureStore) Download(ctx context.Context, bucket, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, bucket, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrNotFound
		}
		return nil, logging.NewOperationError("storage.download", "", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("read blob %s/%s: %w", bucket, name, err)
	}
	return buf.Bytes(), nil
}

func (s *AzureStore) Exists(ctx context.Context, bucket, name string) (bool, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(bucket).NewBlobClient(name)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return false, nil
		}
		return false, logging.NewOperationError("storage.exists", "", err)
	}
	return true, nil
}

// Replace overwrites an existing object, keeping its name.
func (s *AzureStore) Replace(ctx context.Context, bucket, name string, obj Object) error {
	exists, err := s.Exists(ctx, bucket, name)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return s.put(ctx, bucket, name, obj)
}

// EnsureBucket creates the container if it is missing.
func (s *AzureStore) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.CreateContainer(ctx, bucket, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return logging.NewOperationError("storage.ensure_bucket", "", err)
	}
	return nil
}

func (s *AzureStore) put(ctx context.Context, bucket, name string, obj Object) error {
	contentType := obj.ContentType
	_, err := s.client.UploadBuffer(ctx, bucket, name, obj.Data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		Metadata: map[string]*string{
			"originalfilename": &obj.OriginalName,
			"uploaddate":       ptr(s.now().UTC().Format(time.RFC3339)),
		},
	})
	if err != nil {
		wrapped := logging.NewOperationError("storage.put", "", err)
		s.logger.Error("blob upload failed", zap.String("bucket", bucket), zap.String("name", name), zap.Error(wrapped))
		return wrapped
	}
	s.logger.Debug("blob stored", zap.String("bucket", bucket), zap.String("name", name), zap.Int("size", len(obj.Data)))
	return nil
}

var unsafeObjectChars = regexp.MustCompile(`[^\w.-]`)

// ObjectName builds the stored name for an upload.
func ObjectName(originalName string, now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + unsafeObjectChars.ReplaceAllString(originalName, "_")
}

func ptr[T any](v T) *T { return &v }

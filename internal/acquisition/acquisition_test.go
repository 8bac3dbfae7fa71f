package acquisition

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/gigwork/internal/apperror"
	"github.com/example/gigwork/internal/imageprocessor"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(3, 3, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestAcquirer(t *testing.T, fetcher Fetcher) (*Acquirer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads", "identity")
	if fetcher == nil {
		fetcher = NewHTTPFetcher(FetcherConfig{Timeout: time.Second})
	}
	return NewAcquirer(dir, fetcher, imageprocessor.NewCodec(), zap.NewNop()), dir
}

func filesIn(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func assertAcquisitionMessage(t *testing.T, err error, message string) {
	t.Helper()
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected apperror, got %v", err)
	assert.Equal(t, apperror.KindAcquisition, appErr.Kind)
	assert.Equal(t, message, appErr.Message)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestAcquireDataURIWritesTempFile(t *testing.T) {
	a, dir := newTestAcquirer(t, nil)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))

	doc, err := a.Acquire(context.Background(), Request{Image: uri})
	require.NoError(t, err)

	assert.Equal(t, OriginBase64, doc.Origin)
	assert.True(t, strings.HasPrefix(doc.Filename, "temp_"))
	assert.True(t, strings.HasSuffix(doc.Filename, ".png"))
	assert.Equal(t, []string{doc.Filename}, filesIn(t, dir))
	assert.Equal(t, 16, doc.Image.Bounds().Dx())
}

func TestAcquireBadDataURILeavesNoFile(t *testing.T) {
	a, dir := newTestAcquirer(t, nil)

	_, err := a.Acquire(context.Background(), Request{Image: "data:image/png;base64,!!!not-base64"})
	assertAcquisitionMessage(t, err, MsgBase64Failed)

	_, err = a.Acquire(context.Background(), Request{Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("text"))})
	assertAcquisitionMessage(t, err, MsgBase64Failed)

	assert.Empty(t, filesIn(t, dir))
}

func TestAcquireRemoteURL(t *testing.T) {
	payload := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	a, dir := newTestAcquirer(t, nil)

	doc, err := a.Acquire(context.Background(), Request{Image: server.URL + "/passport.png"})
	require.NoError(t, err)
	assert.Equal(t, OriginRemoteURL, doc.Origin)
	assert.True(t, strings.HasPrefix(doc.Filename, "temp_http_"))

	_, err = a.Acquire(context.Background(), Request{Image: server.URL + "/missing.png"})
	assertAcquisitionMessage(t, err, MsgRemoteFailed)
	assert.Len(t, filesIn(t, dir), 1)
}

func TestFetcherTLSVerificationIsConfigurable(t *testing.T) {
	payload := pngBytes(t)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	insecure := NewHTTPFetcher(FetcherConfig{Timeout: time.Second, InsecureSkipVerify: true})
	data, err := insecure.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	strict := NewHTTPFetcher(FetcherConfig{Timeout: time.Second})
	_, err = strict.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestFetcherEnforcesSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 64))
	}))
	defer server.Close()

	f := NewHTTPFetcher(FetcherConfig{Timeout: time.Second, MaxBytes: 32})
	_, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestAcquireRejectsBareFileName(t *testing.T) {
	a, _ := newTestAcquirer(t, nil)

	for _, name := range []string{"passport.JPG", "scan.png", "../x.jpeg"} {
		_, err := a.Acquire(context.Background(), Request{Image: name})
		assertAcquisitionMessage(t, err, MsgInvalidFormat)
	}
}

func TestAcquireUpload(t *testing.T) {
	a, dir := newTestAcquirer(t, nil)
	require.NoError(t, a.EnsureDir())

	path := filepath.Join(dir, "image-1700000000000-42.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t), 0o600))

	doc, err := a.Acquire(context.Background(), Request{Upload: &Upload{Path: path, Filename: "image-1700000000000-42.png"}})
	require.NoError(t, err)
	assert.Equal(t, OriginUpload, doc.Origin)
	assert.Equal(t, path, doc.Path)

	_, err = a.Acquire(context.Background(), Request{})
	assertAcquisitionMessage(t, err, MsgUploadFailed)

	_, err = a.Acquire(context.Background(), Request{Upload: &Upload{Path: filepath.Join(dir, "gone.png")}})
	assertAcquisitionMessage(t, err, MsgUploadFailed)
}

package facematch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	face "github.com/Kagami/go-face"

	"github.com/example/gigwork/internal/imageprocessor"
)

// Descriptor is a face embedding.
type Descriptor []float32

// Detector finds faces in an image and returns one descriptor per face,
// the most prominent face first.
type Detector interface {
	Describe(ctx context.Context, img image.Image) ([]Descriptor, error)
	Name() string
}

// BackendDlib names the in-process dlib detector.
const BackendDlib = "dlib"

// DlibDetector runs dlib through go-face. The underlying recognizer is not safe
// for concurrent use, so calls are serialized.
type DlibDetector struct {
	mu    sync.Mutex
	rec   *face.Recognizer
	codec imageprocessor.Codec
}

// NewDlibDetector loads the dlib models from modelsDir.
func NewDlibDetector(modelsDir string, codec imageprocessor.Codec) (*DlibDetector, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	return &DlibDetector{rec: rec, codec: codec}, nil
}

func (d *DlibDetector) Name() string { return BackendDlib }

func (d *DlibDetector) Describe(ctx context.Context, img image.Image) ([]Descriptor, error) {
	// go-face only accepts JPEG input.
	data, err := d.codec.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	faces, err := d.rec.Recognize(data)
	if err != nil {
		return nil, fmt.Errorf("recognize faces: %w", err)
	}
	out := make([]Descriptor, 0, len(faces))
	for _, f := range faces {
		desc := make(Descriptor, len(f.Descriptor))
		copy(desc, f.Descriptor[:])
		out = append(out, desc)
	}
	return out, nil
}

func (d *DlibDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.Close()
	return nil
}

// Embedder computes face embeddings in a remote service.
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([][]float32, error)
	Backend() string
}

// RemoteDetector sends JPEG encoded images to an Embedder.
type RemoteDetector struct {
	embedder Embedder
	codec    imageprocessor.Codec
}

func NewRemoteDetector(embedder Embedder, codec imageprocessor.Codec) *RemoteDetector {
	return &RemoteDetector{embedder: embedder, codec: codec}
}

func (r *RemoteDetector) Name() string { return r.embedder.Backend() }

func (r *RemoteDetector) Describe(ctx context.Context, img image.Image) ([]Descriptor, error) {
	data, err := r.codec.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	embeddings, err := r.embedder.Embed(ctx, data)
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(embeddings))
	for _, e := range embeddings {
		if len(e) == 0 {
			return nil, errors.New("remote embedder returned an empty descriptor")
		}
		out = append(out, Descriptor(e))
	}
	return out, nil
}

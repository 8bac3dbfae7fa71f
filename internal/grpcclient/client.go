package grpcclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/example/gigwork/internal/logging"
)

// EmbedMethod is the full method name of the face embedding RPC. Requests and
// responses are google.protobuf.Struct messages:
//
//	request:  {"image": "<base64 jpeg>"}
//	response: {"faces": [[f0, f1, ...], ...], "backend": "<name>"}
const EmbedMethod = "/facematch.v1.FaceEmbedder/Embed"

// Dial connects to a gRPC service without TLS, blocking until ready or 5s pass.
func Dial(ctx context.Context, addr string, logger *zap.Logger) (*grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial", "", err)
		logger.Error("failed to dial grpc service", zap.Error(wrapped), zap.String("addr", addr))
		return nil, wrapped
	}
	return conn, nil
}

// FaceEmbedder calls a remote face embedding service.
type FaceEmbedder struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger

	mu      sync.RWMutex
	backend string
}

// NewFaceEmbedder wraps an established connection.
func NewFaceEmbedder(conn grpc.ClientConnInterface, logger *zap.Logger) *FaceEmbedder {
	return &FaceEmbedder{conn: conn, logger: logger.Named("face_embedder"), backend: "grpc"}
}

// Backend is the name reported by the remote service, "grpc" until a call says otherwise.
func (f *FaceEmbedder) Backend() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.backend
}

// Embed returns one descriptor per detected face.
func (f *FaceEmbedder) Embed(ctx context.Context, image []byte) ([][]float32, error) {
	req, err := structpb.NewStruct(map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	if err := f.conn.Invoke(ctx, EmbedMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("grpcclient.embed", "", err)
		f.logger.Error("face embedder call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	if name := resp.GetFields()["backend"].GetStringValue(); name != "" {
		f.mu.Lock()
		f.backend = name
		f.mu.Unlock()
	}
	return decodeFaces(resp)
}

func decodeFaces(resp *structpb.Struct) ([][]float32, error) {
	faces, ok := resp.GetFields()["faces"]
	if !ok {
		return nil, errors.New("embedder response has no faces field")
	}
	list := faces.GetListValue().GetValues()
	out := make([][]float32, 0, len(list))
	for i, face := range list {
		values := face.GetListValue().GetValues()
		desc := make([]float32, len(values))
		for j, v := range values {
			n, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return nil, fmt.Errorf("face %d: component %d is not a number", i, j)
			}
			desc[j] = float32(n.NumberValue)
		}
		out = append(out, desc)
	}
	return out, nil
}

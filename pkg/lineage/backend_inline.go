package lineage

import (
	"context"
	"io"
	"strings"
)

// InlineBackend keeps document text on the record itself; the ref is the text.
type InlineBackend struct{}

// NewInlineBackend creates the content backend for document items.
func NewInlineBackend() *InlineBackend {
	return &InlineBackend{}
}

func (InlineBackend) Kind() Kind   { return KindDocument }
func (InlineBackend) Name() string { return "inline" }

func (InlineBackend) Store(ctx context.Context, req StoreRequest) (string, int64, error) {
	if req.Reader == nil {
		return "", 0, nil
	}
	var sb strings.Builder
	n, err := io.Copy(&sb, req.Reader)
	if err != nil {
		return "", 0, &StorageError{Backend: "inline", Op: "store", Err: err}
	}
	return sb.String(), n, nil
}

func (InlineBackend) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(ref)), nil
}

// Remove is a no-op; the text disappears with its record.
func (InlineBackend) Remove(ctx context.Context, ref string) error {
	return nil
}

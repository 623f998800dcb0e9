package lineage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tendant/content-lineage/pkg/lineage/objectkey"
)

// BlobBackend keeps file bytes in a BlobStore under generated keys.
type BlobBackend struct {
	name  string
	store BlobStore
	keys  objectkey.Generator
}

// BlobBackendOption configures a BlobBackend
type BlobBackendOption func(*BlobBackend)

// WithKeyGenerator overrides the object key generator
func WithKeyGenerator(gen objectkey.Generator) BlobBackendOption {
	return func(b *BlobBackend) {
		b.keys = gen
	}
}

// NewBlobBackend creates the content backend for file items.
func NewBlobBackend(name string, store BlobStore, opts ...BlobBackendOption) *BlobBackend {
	b := &BlobBackend{
		name:  name,
		store: store,
		keys:  objectkey.NewRecommendedGenerator(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BlobBackend) Kind() Kind   { return KindFile }
func (b *BlobBackend) Name() string { return b.name }

// Store uploads the content under a fresh key; the extension of req.Name is kept.
// The stored object must report as many bytes as were read, otherwise it is
// removed and the store fails.
func (b *BlobBackend) Store(ctx context.Context, req StoreRequest) (string, int64, error) {
	key := b.keys.GenerateKey(req.ProjectID, uuid.New(), req.Name)
	counter := &countingReader{r: req.Reader}

	if err := b.store.Upload(ctx, key, counter, UploadParams{MimeType: req.MimeType}); err != nil {
		return "", 0, &StorageError{Backend: b.name, Key: key, Op: "store", Err: err}
	}

	meta, err := b.store.GetObjectMeta(ctx, key)
	if err == nil && meta.Size != counter.n {
		err = fmt.Errorf("stored %d bytes, object reports %d", counter.n, meta.Size)
	}
	if err != nil {
		if rmErr := b.store.Delete(context.WithoutCancel(ctx), key); rmErr != nil {
			err = fmt.Errorf("%w (cleanup: %v)", err, rmErr)
		}
		return "", 0, &StorageError{Backend: b.name, Key: key, Op: "store", Err: err}
	}
	return key, meta.Size, nil
}

func (b *BlobBackend) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	rc, err := b.store.Download(ctx, ref)
	if err != nil {
		return nil, &StorageError{Backend: b.name, Key: ref, Op: "fetch", Err: err}
	}
	return rc, nil
}

func (b *BlobBackend) Remove(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if err := b.store.Delete(ctx, ref); err != nil {
		return &StorageError{Backend: b.name, Key: ref, Op: "remove", Err: err}
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

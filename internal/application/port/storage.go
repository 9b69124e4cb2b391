package port

import (
	"context"
	"errors"
	"io"
)

// ErrAttachmentTooLarge is returned by Store when content exceeds the store's size limit
var ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")

// AttachmentStore keeps opaque attachment blobs addressed by reference.
// The workflow core only ever holds the reference.
type AttachmentStore interface {
	Store(ctx context.Context, content io.Reader, filename string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) bool
	SizeOf(ctx context.Context, ref string) (int64, error)
}

package fragmat

import (
	"context"

	"github.com/fragmat/fragmat/blobstore"
	"github.com/fragmat/fragmat/fragment"
	"github.com/fragmat/fragmat/fragstore"
	"github.com/fragmat/fragmat/matrix"
	"github.com/fragmat/fragmat/matstore"
)

// CreateFragments drains src into a fragment store rooted at dir. The
// directory is created if needed; pass fragstore.WithPacked() for the
// bit-compressed layout.
func CreateFragments(ctx context.Context, dir string, src fragment.Source, opts ...fragstore.WriterOption) error {
	store, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return err
	}
	return fragstore.Write(ctx, store, src, opts...)
}

// OpenFragments opens a fragment store rooted at dir. The returned source is
// seekable and detects the layout from the store's version tag.
func OpenFragments(ctx context.Context, dir string) (*fragstore.Loader, error) {
	store, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return nil, err
	}
	return fragstore.Open(ctx, store)
}

// CreateMatrix drains src into a matrix store rooted at dir. Pass
// matstore.WithPacked for the bit-compressed layout (uint32 values only).
func CreateMatrix[T matrix.Value](ctx context.Context, dir string, src matrix.Source[T], opts ...matstore.WriterOption[T]) error {
	store, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return err
	}
	return matstore.Write(ctx, store, src, opts...)
}

// OpenMatrix opens a matrix store rooted at dir. T must match the stored
// element type; packed stores load as uint32 only.
func OpenMatrix[T matrix.Value](ctx context.Context, dir string) (matrix.Source[T], error) {
	store, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return nil, err
	}
	return matstore.Open[T](ctx, store)
}

// WritePeakMatrix drains a count-matrix source into a packed matrix store
// rooted at dir. Counts compress well, so the packed layout is the default
// here.
func WritePeakMatrix(ctx context.Context, dir string, src matrix.Source[uint32]) error {
	return CreateMatrix[uint32](ctx, dir, src, matstore.WithPacked[uint32]())
}

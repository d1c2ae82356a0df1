// Package fragmat is a columnar engine for single-cell genomics data:
// streaming cursors over sequencing fragments and sparse matrices, compact
// bit-packed on-disk stores for both, and overlap aggregation from fragments
// into cell-by-region count matrices.
//
// The heavy lifting lives in the subpackages:
//
//   - fragment and matrix define the pull-cursor contracts plus in-memory
//     sources and algebra adapters (concat, select, convert).
//   - pfor implements the 128-entry bit-packing codec the packed stores use.
//   - blobstore and arrays form the storage substrate: named immutable blobs
//     over memory, local files, S3 or MinIO, with typed checksummed arrays
//     on top.
//   - fragstore and matstore are the on-disk formats, each in an unpacked
//     and a packed variant, loading back as cursors with efficient seeks.
//   - bed reads and writes the tab-separated text fragment format.
//   - peaks turns a fragment cursor and a region list into a count matrix.
//
// # Quick start
//
// Import a text fragment file into a packed store and count peak overlaps:
//
//	ctx := context.Background()
//	src, _ := bed.NewReader("fragments.tsv.gz")
//	_ = fragmat.CreateFragments(ctx, "./frags", src, fragstore.WithPacked())
//
//	frags, _ := fragmat.OpenFragments(ctx, "./frags")
//	m, _ := peaks.NewPeakMatrix(frags, regions)
//	_ = fragmat.WritePeakMatrix(ctx, "./counts", m)
//
// This package is a thin facade over those paths; the error variables here
// alias the taxonomy shared across the subpackages so callers can match with
// errors.Is without importing every package.
package fragmat

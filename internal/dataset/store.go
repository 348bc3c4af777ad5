// Package dataset implements the merge-upload columnar store: one parquet
// object per category, read-modify-written on every ingestion run.
//
// The merge protocol is read → concatenate → deduplicate → sort → atomic
// replace. Deduplication is by exact row equality across all columns, and
// rows are sorted by their deterministic sort key before serialization, so
// re-fetching the same day always produces a byte-stable object regardless
// of the order the provider returned records in.
//
// There is no locking: concurrent runs against the same category object can
// lose an update (last-write-wins). This is acceptable under the
// single-scheduled-run-per-day assumption and is a documented constraint,
// not a safety property.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/record"
	"github.com/fitledger/fitledger/internal/storage"
	"github.com/fitledger/fitledger/internal/support/exception"
	"github.com/fitledger/fitledger/internal/support/logger"
)

// parquetConcurrency is the marshal/unmarshal parallelism handed to
// parquet-go. The per-category objects are small, so a low constant is
// plenty.
const parquetConcurrency = 4

// Store is the merge-upload store for one category's parquet object.
type Store[T record.Row] struct {
	objects     storage.ObjectStore
	category    record.Category
	key         string
	compression parquet.CompressionCodec
}

// NewStore creates a Store for the given category using the dataset
// configuration for the object key prefix and compression codec.
func NewStore[T record.Row](objects storage.ObjectStore, category record.Category, cfg config.DatasetConfig) (*Store[T], error) {
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, exception.New(exception.ModuleDataset, fmt.Sprintf("invalid compression for category %s", category), err, false)
	}
	return &Store[T]{
		objects:     objects,
		category:    category,
		key:         category.ObjectKey(cfg.BasePrefix),
		compression: codec,
	}, nil
}

// Category returns the category this store persists.
func (s *Store[T]) Category() record.Category {
	return s.category
}

// Key returns the object key of the category's parquet object.
func (s *Store[T]) Key() string {
	return s.key
}

// Load reads all rows currently persisted for the category. A missing
// object is the normal empty state and yields no rows and no error.
func (s *Store[T]) Load(ctx context.Context) ([]T, error) {
	rc, err := s.objects.Download(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			logger.Debugf("Store object %q does not exist yet; treating as empty.", s.key)
			return nil, nil
		}
		return nil, exception.New(exception.ModuleStorageRead, fmt.Sprintf("failed to download store object %q", s.key), err, true)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, exception.New(exception.ModuleStorageRead, fmt.Sprintf("failed to read store object %q", s.key), err, true)
	}
	return decodeRows[T](raw, s.key)
}

// MergeAndPersist merges newRows into the persisted object and atomically
// replaces it. It returns the row count of the store after the merge.
// Merging zero new rows into an absent object writes nothing.
func (s *Store[T]) MergeAndPersist(ctx context.Context, newRows []T) (int, error) {
	existing, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}

	merged := dedupeAndSort(append(existing, newRows...))
	if len(merged) == 0 {
		logger.Infof("Category %s: nothing to persist (no existing rows, no new rows).", s.category)
		return 0, nil
	}

	payload, err := encodeRows(merged, s.compression)
	if err != nil {
		return 0, exception.New(exception.ModuleDataset, fmt.Sprintf("failed to serialize store object %q", s.key), err, false)
	}
	if err := s.objects.Upload(ctx, s.key, bytes.NewReader(payload)); err != nil {
		return 0, exception.New(exception.ModuleStorageWrite, fmt.Sprintf("failed to upload store object %q", s.key), err, true)
	}

	logger.Infof("Category %s: merged %d new row(s) into %q (%d total).", s.category, len(newRows), s.key, len(merged))
	return len(merged), nil
}

// dedupeAndSort removes exact duplicates and orders rows by their sort key.
// The dedup keeps the first occurrence; the subsequent sort makes the
// result independent of input order.
func dedupeAndSort[T record.Row](rows []T) []T {
	seen := make(map[T]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SortKey() < out[j].SortKey()
	})
	return out
}

func decodeRows[T record.Row](raw []byte, key string) ([]T, error) {
	pf := buffer.NewBufferFileFromBytes(raw)
	defer pf.Close()

	pr, err := reader.NewParquetReader(pf, new(T), parquetConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet object %q: %w", key, err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	if num == 0 {
		return nil, nil
	}
	rows := make([]T, num)
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode parquet object %q: %w", key, err)
	}
	return rows, nil
}

func encodeRows[T record.Row](rows []T, codec parquet.CompressionCodec) ([]byte, error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(T), parquetConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet object: %w", err)
	}
	return buf.Bytes(), nil
}

// compressionCodec maps the configured compression string to a parquet codec.
func compressionCodec(compression string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compression) {
	case "SNAPPY", "":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compression)
	}
}

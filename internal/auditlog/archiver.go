package auditlog

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/askdb/askdb/internal/storage"
)

const archiveContentType = "application/vnd.apache.parquet"

// Archiver exports recent audit entries as a parquet object.
type Archiver struct {
	Logs  *Logger
	Store storage.ObjectStore
}

// ArchiveRecent encodes up to limit recent entries and uploads them under a
// date-partitioned key. Unlike Log, archiving is an explicit operation and
// its failures are returned to the caller.
func (a *Archiver) ArchiveRecent(ctx context.Context, limit int, now time.Time) (storage.ObjectInfo, error) {
	if a.Logs == nil {
		return storage.ObjectInfo{}, fmt.Errorf("audit logger is required")
	}
	if a.Store == nil {
		return storage.ObjectInfo{}, fmt.Errorf("object store is required")
	}

	entries, err := a.Logs.List(ctx, limit)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	if len(entries) == 0 {
		return storage.ObjectInfo{}, fmt.Errorf("no audit entries to archive")
	}

	encoded, err := EncodeEntriesToParquet(entries)
	if err != nil {
		return storage.ObjectInfo{}, err
	}

	key := BuildArchiveKey(now)
	info, err := a.Store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{
		ContentType: archiveContentType,
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload audit archive %q: %w", key, err)
	}
	return info, nil
}

func BuildArchiveKey(now time.Time) string {
	ts := now.UTC()
	return path.Join(
		"audit",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("query-logs-%d.parquet", ts.UnixMilli()),
	)
}

package auditlog

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
)

type ParquetEncodeResult struct {
	Data         []byte
	RecordCount  int64
	MinCreatedAt *time.Time
	MaxCreatedAt *time.Time
}

type parquetLogRow struct {
	ID              int64  `parquet:"id"`
	Question        string `parquet:"question"`
	GeneratedSQL    string `parquet:"generated_sql"`
	CreatedAtUnixMs int64  `parquet:"created_at_unix_ms"`
}

// EncodeEntriesToParquet serializes audit entries into one parquet archive.
func EncodeEntriesToParquet(entries []Entry) (ParquetEncodeResult, error) {
	if len(entries) == 0 {
		return ParquetEncodeResult{}, fmt.Errorf("entries are required")
	}

	rows := make([]parquetLogRow, 0, len(entries))
	var minTime *time.Time
	var maxTime *time.Time

	for _, entry := range entries {
		rows = append(rows, parquetLogRow{
			ID:              entry.ID,
			Question:        entry.Question,
			GeneratedSQL:    entry.GeneratedSQL,
			CreatedAtUnixMs: entry.CreatedAt.UnixMilli(),
		})

		if !entry.CreatedAt.IsZero() {
			createdAt := entry.CreatedAt.UTC()
			if minTime == nil || createdAt.Before(*minTime) {
				copy := createdAt
				minTime = &copy
			}
			if maxTime == nil || createdAt.After(*maxTime) {
				copy := createdAt
				maxTime = &copy
			}
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetLogRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return ParquetEncodeResult{
		Data:         buf.Bytes(),
		RecordCount:  int64(len(rows)),
		MinCreatedAt: minTime,
		MaxCreatedAt: maxTime,
	}, nil
}

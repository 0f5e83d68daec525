package ledger

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"zipstream/internal/domain"
)

// TransferRow is the Parquet layout of one transfer.
type TransferRow struct {
	ArchiveID  string `parquet:"name=archive_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Directory  string `parquet:"name=directory, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartedAt  int64  `parquet:"name=started_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	DurationMs int64  `parquet:"name=duration_ms, type=INT64"`
	BytesSent  int64  `parquet:"name=bytes_sent, type=INT64"`
	ChunksSent int64  `parquet:"name=chunks_sent, type=INT64"`
	Outcome    string `parquet:"name=outcome, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ExitCode   int32  `parquet:"name=exit_code, type=INT32"`
	Message    string `parquet:"name=message, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toRow(t domain.Transfer) TransferRow {
	return TransferRow{
		ArchiveID:  t.ID,
		Directory:  t.Dir,
		StartedAt:  t.StartTime.UnixMilli(),
		DurationMs: t.Duration.Milliseconds(),
		BytesSent:  t.Bytes,
		ChunksSent: t.Chunks,
		Outcome:    string(t.Outcome),
		ExitCode:   int32(t.ExitCode),
		Message:    t.Error,
	}
}

// ExportParquet writes transfers to a Snappy-compressed Parquet file at
// path, replacing it if it exists.
func ExportParquet(path string, transfers []domain.Transfer) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file %s: %w", path, err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close parquet file %s: %w", path, cerr)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(TransferRow), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, t := range transfers {
		if err := pw.Write(toRow(t)); err != nil {
			return fmt.Errorf("failed to write parquet row for '%s': %w", t.ID, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file %s: %w", path, err)
	}
	return nil
}

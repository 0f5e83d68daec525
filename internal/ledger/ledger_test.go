package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"zipstream/internal/domain"
	apperrors "zipstream/pkg/errors"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func transfer(id string, start time.Time, bytes int64, err error) *domain.Transfer {
	t := domain.NewTransfer(id)
	t.Dir = "/srv/photos/" + id
	t.StartTime = start
	t.Bytes = bytes
	t.Chunks = (bytes + 511) / 512
	t.Finish(err)
	t.Duration = 1500 * time.Millisecond
	if err == nil {
		t.ExitCode = 0
	}
	return t
}

func TestLedger_RecordAndList(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Record(ctx, transfer("first", base, 1024, nil)))
	require.NoError(t, l.Record(ctx, transfer("second", base.Add(time.Minute), 10, context.Canceled)))
	require.NoError(t, l.Record(ctx, transfer("third", base.Add(2*time.Minute), 0, apperrors.ErrNotFound)))

	all, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	assert.Equal(t, "third", all[0].ID)
	assert.Equal(t, domain.OutcomeNotFound, all[0].Outcome)
	assert.Equal(t, "second", all[1].ID)
	assert.Equal(t, domain.OutcomeCancelled, all[1].Outcome)
	assert.Equal(t, "context canceled", all[1].Error)

	first := all[2]
	assert.Equal(t, "first", first.ID)
	assert.Equal(t, "/srv/photos/first", first.Dir)
	assert.True(t, base.Equal(first.StartTime), "got %v", first.StartTime)
	assert.Equal(t, 1500*time.Millisecond, first.Duration)
	assert.Equal(t, int64(1024), first.Bytes)
	assert.Equal(t, int64(2), first.Chunks)
	assert.Equal(t, domain.OutcomeCompleted, first.Outcome)
	assert.Equal(t, 0, first.ExitCode)
	assert.Empty(t, first.Error)

	latest, err := l.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "third", latest[0].ID)
}

func TestLedger_Summary(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)
	now := time.Now()

	require.NoError(t, l.Record(ctx, transfer("a", now, 100, nil)))
	require.NoError(t, l.Record(ctx, transfer("b", now, 50, nil)))
	require.NoError(t, l.Record(ctx, transfer("c", now, 7, errors.New("boom"))))

	summary, err := l.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, OutcomeSummary{Outcome: domain.OutcomeCompleted, Transfers: 2, Bytes: 150}, summary[0])
	assert.Equal(t, OutcomeSummary{Outcome: domain.OutcomeFailed, Transfers: 1, Bytes: 7}, summary[1])
}

func TestLedger_ConcurrentRecords(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Record(ctx, transfer("same", time.Now(), 1, nil)))
		}()
	}
	wg.Wait()

	all, err := l.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 8)
}

func TestLedger_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.duckdb")

	l, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, transfer("kept", time.Now(), 1, nil)))
	require.NoError(t, l.Close())

	l, err = Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()

	all, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "kept", all[0].ID)
}

func TestExportParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transfers.parquet")
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	transfers := []domain.Transfer{
		*transfer("abc123", start, 2048, nil),
		*transfer("gone", start, 0, apperrors.ErrNotFound),
	}

	require.NoError(t, ExportParquet(path, transfers))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(TransferRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(2), pr.GetNumRows())
	rows := make([]TransferRow, 2)
	require.NoError(t, pr.Read(&rows))

	assert.Equal(t, "abc123", rows[0].ArchiveID)
	assert.Equal(t, int64(2048), rows[0].BytesSent)
	assert.Equal(t, start.UnixMilli(), rows[0].StartedAt)
	assert.Equal(t, string(domain.OutcomeCompleted), rows[0].Outcome)
	assert.Equal(t, int32(0), rows[0].ExitCode)

	assert.Equal(t, "gone", rows[1].ArchiveID)
	assert.Equal(t, string(domain.OutcomeNotFound), rows[1].Outcome)
	assert.Equal(t, int32(-1), rows[1].ExitCode)
	assert.NotEmpty(t, rows[1].Message)
}

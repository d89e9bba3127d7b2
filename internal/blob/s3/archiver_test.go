package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

type capturingWriter struct {
	key         string
	keys        []string
	data        []byte
	contentType string
	err         error
}

func (w *capturingWriter) Put(_ context.Context, key string, data []byte, contentType string) error {
	if w.err != nil {
		return w.err
	}
	w.key = key
	w.keys = append(w.keys, key)
	w.data = data
	w.contentType = contentType
	return nil
}

type scriptedJournal struct {
	recs    []domain.OperationRecord
	deleted *time.Time
}

func (j *scriptedJournal) Insert(context.Context, domain.OperationRecord) error { return nil }

func (j *scriptedJournal) ListRecent(context.Context, int) ([]domain.OperationRecord, error) {
	return nil, nil
}

func (j *scriptedJournal) ListBefore(_ context.Context, before time.Time) ([]domain.OperationRecord, error) {
	var out []domain.OperationRecord
	for _, r := range j.recs {
		if r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (j *scriptedJournal) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	j.deleted = &before
	var n int64
	var keep []domain.OperationRecord
	for _, r := range j.recs {
		if r.CreatedAt.Before(before) {
			n++
			continue
		}
		keep = append(keep, r)
	}
	j.recs = keep
	return n, nil
}

func rec(id string, age time.Duration) domain.OperationRecord {
	return domain.OperationRecord{
		ID:        id,
		Kind:      domain.OpSplit,
		Family:    domain.FamilyCurrency,
		Owner:     "0xaa",
		Amount:    "4000000000000000000",
		Success:   true,
		TxHash:    "0x" + id,
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func TestArchiveOperationsUploadsAndDeletes(t *testing.T) {
	writer := &capturingWriter{}
	journal := &scriptedJournal{recs: []domain.OperationRecord{
		rec("old1", 48*time.Hour),
		rec("old2", 36*time.Hour),
		rec("fresh", time.Hour),
	}}
	arch := NewArchiver(writer, journal, slog.New(slog.DiscardHandler))

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	n, err := arch.ArchiveOperations(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "application/x-ndjson", writer.contentType)
	wantKey := "archive/operations/" + cutoff.Format("2006-01") + "/" + cutoff.Format("20060102T150405") + ".jsonl"
	assert.Equal(t, wantKey, writer.key)

	lines := bytes.Split(bytes.TrimSpace(writer.data), []byte("\n"))
	require.Len(t, lines, 2)
	var row archivedOperation
	require.NoError(t, json.Unmarshal(lines[0], &row))
	assert.Equal(t, "old1", row.ID)
	assert.Equal(t, "split", row.Kind)
	assert.Equal(t, "4000000000000000000", row.Amount)

	require.Len(t, journal.recs, 1, "fresh rows stay in the journal")
	assert.Equal(t, "fresh", journal.recs[0].ID)
}

func TestArchiveRunsInSameMonthUseDistinctKeys(t *testing.T) {
	writer := &capturingWriter{}
	journal := &scriptedJournal{recs: []domain.OperationRecord{
		rec("old1", 48 * time.Hour),
		rec("old2", 36 * time.Hour),
	}}
	arch := NewArchiver(writer, journal, slog.New(slog.DiscardHandler))

	first := time.Now().UTC().Add(-40 * time.Hour)
	_, err := arch.ArchiveOperations(context.Background(), first)
	require.NoError(t, err)

	_, err = arch.ArchiveOperations(context.Background(), first.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, writer.keys, 2)
	assert.NotEqual(t, writer.keys[0], writer.keys[1],
		"a later run must not overwrite an archive whose rows are already deleted")
}

func TestArchiveOperationsNothingToArchive(t *testing.T) {
	writer := &capturingWriter{}
	journal := &scriptedJournal{recs: []domain.OperationRecord{rec("fresh", time.Hour)}}
	arch := NewArchiver(writer, journal, slog.New(slog.DiscardHandler))

	n, err := arch.ArchiveOperations(context.Background(), time.Now().UTC().Add(-24*time.Hour))

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.key, "no upload without rows")
	assert.Nil(t, journal.deleted, "no delete without rows")
}

func TestArchiveOperationsUploadFailureKeepsRows(t *testing.T) {
	writer := &capturingWriter{err: context.DeadlineExceeded}
	journal := &scriptedJournal{recs: []domain.OperationRecord{rec("old", 48 * time.Hour)}}
	arch := NewArchiver(writer, journal, slog.New(slog.DiscardHandler))

	_, err := arch.ArchiveOperations(context.Background(), time.Now().UTC())

	require.Error(t, err)
	assert.Nil(t, journal.deleted, "rows must not be deleted when the upload failed")
	require.Len(t, journal.recs, 1)
}

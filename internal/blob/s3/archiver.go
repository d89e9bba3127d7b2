package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// Archiver moves aged operation journal rows to blob storage as JSONL files.
// The primary store stays small while the full history remains queryable from
// the archive. Rows are deleted only after the upload succeeded.
type Archiver struct {
	writer  domain.BlobWriter
	journal domain.OperationStore
	logger  *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, journal domain.OperationStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:  writer,
		journal: journal,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// archivedOperation is the JSONL row shape. Journal rows are flattened with
// stable field names so the archive stays readable without this codebase.
type archivedOperation struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Family    string    `json:"family,omitempty"`
	Side      string    `json:"side,omitempty"`
	Owner     string    `json:"owner"`
	Amount    string    `json:"amount,omitempty"`
	Success   bool      `json:"success"`
	TxHash    string    `json:"txHash,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ArchiveOperations uploads all journal rows created before the cutoff to
// archive/operations/YYYY-MM.jsonl and then deletes them from the journal.
// Returns the number of rows archived.
func (a *Archiver) ArchiveOperations(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.journal.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive operations query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive operations marshal: %w", err)
	}

	key := archiveKey(before)
	if err := a.writer.Put(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive operations upload: %w", err)
	}

	deleted, err := a.journal.DeleteBefore(ctx, before)
	if err != nil {
		// The archive exists; the rows are merely still present. The next
		// run re-archives and retries the delete.
		return int64(len(recs)), fmt.Errorf("s3blob: archive operations cleanup: %w", err)
	}

	a.logger.Info("operations archived",
		slog.String("key", key),
		slog.Int("archived", len(recs)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(recs)), nil
}

// Run archives on the given interval until the context is cancelled,
// keeping retention of journal rows in the primary store.
func (a *Archiver) Run(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			if _, err := a.ArchiveOperations(ctx, cutoff); err != nil {
				a.logger.Warn("archival run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archiveKey partitions archives by year-month and names each batch by its
// full cutoff timestamp. Two runs in the same month must never share a key:
// the rows behind the earlier object are already deleted from the journal,
// so an overwrite would lose them.
func archiveKey(before time.Time) string {
	return fmt.Sprintf("archive/operations/%s/%s.jsonl",
		before.Format("2006-01"), before.Format("20060102T150405"))
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL(recs []domain.OperationRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range recs {
		row := archivedOperation{
			ID:        rec.ID,
			Kind:      string(rec.Kind),
			Family:    string(rec.Family),
			Side:      string(rec.Side),
			Owner:     rec.Owner,
			Amount:    rec.Amount,
			Success:   rec.Success,
			TxHash:    rec.TxHash,
			ErrorKind: string(rec.ErrorKind),
			Message:   rec.Message,
			CreatedAt: rec.CreatedAt,
		}
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

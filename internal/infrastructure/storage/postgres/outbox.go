package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"skugen/internal/core/allocation"
	"skugen/internal/core/id"
	"skugen/pkg/logger"
)

const (
	outboxTable = "sku_outbox"

	// maxOutboxRetries is the number of failed deliveries before a message is parked.
	maxOutboxRetries = 5
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID          id.ID        `db:"id"`
	Shop        string       `db:"shop"`
	AggregateID string       `db:"aggregate_id"` // product id or shop
	EventType   string       `db:"event_type"`   // e.g. "sku.assigned"
	Payload     []byte       `db:"payload"`      // JSON payload
	Status      OutboxStatus `db:"status"`
	RetryCount  int          `db:"retry_count"`
	LastError   *string      `db:"last_error"`
	NextRetryAt *time.Time   `db:"next_retry_at"`
	CreatedAt   time.Time    `db:"created_at"`
	PublishedAt *time.Time   `db:"published_at"`
}

var outboxColumns = []string{
	"id", "shop", "aggregate_id", "event_type", "payload", "status",
	"retry_count", "last_error", "next_retry_at", "created_at", "published_at",
}

// OutboxPublisher writes events to the outbox table.
type OutboxPublisher struct {
	txManager *TxManager
	now       func() time.Time
}

var _ allocation.EventPublisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager, now: time.Now}
}

// Publish writes an event to the outbox within the current transaction.
// MUST be called inside a transaction context so the event commits with the state change.
func (p *OutboxPublisher) Publish(ctx context.Context, event allocation.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	query, args, err := buildOutboxInsert(id.New(), event, p.now().UTC())
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func buildOutboxInsert(msgID id.ID, event allocation.Event, now time.Time) (string, []any, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal event payload: %w", err)
	}

	query, args, err := psql.Insert(outboxTable).
		Columns("id", "shop", "aggregate_id", "event_type", "payload", "status", "created_at").
		Values(msgID, event.Shop, event.AggregateID, event.Type, payload, OutboxStatusPending, now).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}

// OutboxHandler delivers one outbox message (e.g. to a message broker).
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxRelay reads pending messages and hands them to an OutboxHandler.
// Used by the background worker.
type OutboxRelay struct {
	txManager *TxManager
	batchSize uint64
	handler   OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager: txManager,
		batchSize: uint64(batchSize),
		handler:   handler,
	}
}

// ProcessBatch delivers due pending messages. Rows stay locked (SKIP LOCKED)
// until the batch commits, so several relays can run side by side.
// Returns number of delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		query, args, err := buildOutboxFetch(r.batchSize)
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}

		q := r.txManager.GetQuerier(ctx)
		var messages []*OutboxMessage
		if err := pgxscan.Select(ctx, q, &messages, query, args...); err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.processMessage(ctx, q, msg); err != nil {
				logger.Warn(ctx, "outbox delivery failed",
					"message_id", msg.ID, "event_type", msg.EventType, "retry", msg.RetryCount+1, "error", err)
				continue
			}
			processed++
		}
		return nil
	})
	return processed, err
}

func buildOutboxFetch(limit uint64) (string, []any, error) {
	return psql.Select(outboxColumns...).
		From(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPending}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.Expr("next_retry_at <= NOW()"),
		}).
		OrderBy("created_at").
		Limit(limit).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
}

// processMessage delivers one message and records the result.
func (r *OutboxRelay) processMessage(ctx context.Context, q Querier, msg *OutboxMessage) error {
	deliverErr := r.handler.Handle(ctx, msg)

	if deliverErr != nil {
		// Linear backoff: one more minute per failed attempt.
		nextRetry := time.Now().Add(time.Duration(msg.RetryCount+1) * time.Minute)
		status := OutboxStatusPending
		if msg.RetryCount+1 >= maxOutboxRetries {
			status = OutboxStatusFailed
		}

		_, err := q.Exec(ctx, `
			UPDATE sku_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = $3
			WHERE id = $4
		`, deliverErr.Error(), nextRetry, status, msg.ID)
		if err != nil {
			return fmt.Errorf("update failed message: %w", err)
		}
		return deliverErr
	}

	_, err := q.Exec(ctx, `
		UPDATE sku_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	return err
}

// MoveToDLQ moves messages that exhausted their retries to the dead letter table.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sku_outbox
			WHERE status = $1
			RETURNING id, shop, aggregate_id, event_type, payload, retry_count, last_error, created_at
		)
		INSERT INTO sku_outbox_dlq (id, shop, aggregate_id, event_type, payload, retry_count, failure_reason, created_at, failed_at)
		SELECT id, shop, aggregate_id, event_type, payload, retry_count, last_error, created_at, NOW() FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgePublished deletes published messages older than retention.
func (r *OutboxRelay) PurgePublished(ctx context.Context, retention time.Duration) (int64, error) {
	query, args, err := psql.Delete(outboxTable).
		Where(squirrel.Eq{"status": OutboxStatusPublished}).
		Where(squirrel.Lt{"published_at": time.Now().Add(-retention)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}

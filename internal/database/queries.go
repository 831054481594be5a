package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"textbridge/internal/domain"
)

const maxRecentExchanges = 100

func (d *Database) AddExchange(ctx context.Context, exchange *domain.Exchange) error {
	host := strings.TrimSpace(string(exchange.Host))
	if host == "" {
		return errors.New("exchange host is empty")
	}

	outcome := strings.TrimSpace(exchange.Outcome)
	if outcome == "" {
		return errors.New("exchange outcome is empty")
	}

	createdAt := exchange.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `insert into exchanges
	(host, chat_id, outcome, status_code, input_bytes, output_bytes, duration_ms, created_at)
	values (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query,
		host,
		exchange.ChatID,
		outcome,
		exchange.StatusCode,
		exchange.InputBytes,
		exchange.OutputBytes,
		exchange.Duration.Milliseconds(),
		createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	exchange.ID = id
	exchange.CreatedAt = createdAt

	return nil
}

// GetRecentExchanges returns the newest exchanges of one chat on one host,
// newest first.
func (d *Database) GetRecentExchanges(
	ctx context.Context,
	host domain.Host,
	chatID int64,
	limit int,
) ([]domain.Exchange, error) {
	if limit <= 0 || limit > maxRecentExchanges {
		limit = maxRecentExchanges
	}

	query := `select id, host, chat_id, outcome, status_code, input_bytes, output_bytes, duration_ms, created_at
	from exchanges
	where host = ? and chat_id = ?
	order by id desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, string(host), chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"host", host,
				"chatID", chatID,
				"operation", "GetRecentExchanges")
		}
	}()

	var exchanges []domain.Exchange
	for rows.Next() {
		var (
			e          domain.Exchange
			hostStr    string
			durationMs int64
			createdAt  int64
		)

		if err = rows.Scan(
			&e.ID,
			&hostStr,
			&e.ChatID,
			&e.Outcome,
			&e.StatusCode,
			&e.InputBytes,
			&e.OutputBytes,
			&durationMs,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		e.Host = domain.Host(hostStr)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdAt).UTC()

		exchanges = append(exchanges, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return exchanges, nil
}

// CountExchangesByOutcome groups one chat's exchanges by outcome.
func (d *Database) CountExchangesByOutcome(
	ctx context.Context,
	host domain.Host,
	chatID int64,
) ([]domain.OutcomeCount, error) {
	query := `select outcome, count(*)
	from exchanges
	where host = ? and chat_id = ?
	group by outcome
	order by outcome`

	rows, err := d.db.QueryContext(ctx, query, string(host), chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"host", host,
				"chatID", chatID,
				"operation", "CountExchangesByOutcome")
		}
	}()

	var counts []domain.OutcomeCount
	for rows.Next() {
		var c domain.OutcomeCount
		if err = rows.Scan(&c.Outcome, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		counts = append(counts, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return counts, nil
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abhisek/pathwise/internal/generator"
)

type eventRepo struct {
	db *sqlx.DB
}

func (r *eventRepo) AppendGeneratorEvent(ctx context.Context, data generator.EventData) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO generator_events
			(created_at, provider, model, purpose, input_tokens,
			 output_tokens, latency_ms, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(timeLayout),
		data.Provider, data.Model, data.Purpose,
		data.InputTokens, data.OutputTokens, data.LatencyMs,
		data.Success, data.ErrorMessage)
	if err != nil {
		return fmt.Errorf("append generator event: %w", err)
	}
	return nil
}

type eventRow struct {
	ID           int64  `db:"id"`
	CreatedAt    string `db:"created_at"`
	Provider     string `db:"provider"`
	Model        string `db:"model"`
	Purpose      string `db:"purpose"`
	InputTokens  int    `db:"input_tokens"`
	OutputTokens int    `db:"output_tokens"`
	LatencyMs    int64  `db:"latency_ms"`
	Success      bool   `db:"success"`
	ErrorMessage string `db:"error_message"`
}

func (r *eventRepo) ListGeneratorEvents(ctx context.Context, limit int) ([]GeneratorEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, created_at, provider, model, purpose, input_tokens,
		       output_tokens, latency_ms, success, error_message
		FROM generator_events
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list generator events: %w", err)
	}
	events := make([]GeneratorEvent, 0, len(rows))
	for _, row := range rows {
		created, err := time.Parse(timeLayout, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp: %w", err)
		}
		events = append(events, GeneratorEvent{
			ID:        row.ID,
			CreatedAt: created,
			EventData: generator.EventData{
				Provider:     row.Provider,
				Model:        row.Model,
				Purpose:      row.Purpose,
				InputTokens:  row.InputTokens,
				OutputTokens: row.OutputTokens,
				LatencyMs:    row.LatencyMs,
				Success:      row.Success,
				ErrorMessage: row.ErrorMessage,
			},
		})
	}
	return events, nil
}

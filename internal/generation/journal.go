package generation

import (
	"context"
	"fmt"

	"dude/internal/domain"
	"dude/internal/infra"
	"dude/internal/sqlinline"
)

// PGJournal stores the active operation handle in Postgres. A single row holds
// the handle plus the cached generation parameters, which is what lets the
// handle outlive a poll loop and a process restart.
type PGJournal struct {
	sql infra.SQLExecutor
}

func NewPGJournal(sql infra.SQLExecutor) *PGJournal {
	return &PGJournal{sql: sql}
}

func (j *PGJournal) Save(ctx context.Context, operationName string, params domain.GenerationParameters) error {
	_, err := j.sql.Exec(ctx, sqlinline.QUpsertActiveGeneration,
		operationName, params.Prompt, params.DurationSeconds, string(params.Resolution))
	if err != nil {
		return fmt.Errorf("journal save: %w", err)
	}
	return nil
}

func (j *PGJournal) Load(ctx context.Context) (string, domain.GenerationParameters, bool, error) {
	row := j.sql.QueryRow(ctx, sqlinline.QSelectActiveGeneration)
	var (
		operation  string
		prompt     string
		duration   int
		resolution string
	)
	if err := row.Scan(&operation, &prompt, &duration, &resolution); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.GenerationParameters{}, false, nil
		}
		return "", domain.GenerationParameters{}, false, fmt.Errorf("journal load: %w", err)
	}
	params := domain.GenerationParameters{
		Prompt:          prompt,
		DurationSeconds: duration,
		Resolution:      domain.Resolution(resolution),
	}
	return operation, params, true, nil
}

func (j *PGJournal) Clear(ctx context.Context) error {
	if _, err := j.sql.Exec(ctx, sqlinline.QClearActiveGeneration); err != nil {
		return fmt.Errorf("journal clear: %w", err)
	}
	return nil
}

var _ Journal = (*PGJournal)(nil)

package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/linkcut/linkcut/internal/entity"
)

// ClickRepository persists click events consumed from the click stream.
type ClickRepository struct {
	db *sqlx.DB
}

func NewClickRepository(db *sqlx.DB) *ClickRepository {
	return &ClickRepository{db: db}
}

func (r *ClickRepository) Save(ctx context.Context, event *entity.ClickEvent) error {
	const op = "adapter.repository.postgres.ClickRepository.Save"
	const query = `INSERT INTO click_events(url_id, short_code, clicked_at, ip_address, user_agent, referer)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		event.URLID, event.ShortCode, event.ClickedAt,
		event.IPAddress, event.UserAgent, event.Referer,
	)
	if err != nil {
		return fmt.Errorf("%s: failed to insert into click_events table: %w", op, err)
	}

	return nil
}

func (r *ClickRepository) CountByShortCode(ctx context.Context, shortCode string) (int64, error) {
	const op = "adapter.repository.postgres.ClickRepository.CountByShortCode"
	const query = `SELECT COUNT(*) FROM click_events WHERE short_code = $1`

	var count int64

	if err := r.db.GetContext(ctx, &count, query, shortCode); err != nil {
		return 0, fmt.Errorf("%s: failed to count click_events rows: %w", op, err)
	}

	return count, nil
}

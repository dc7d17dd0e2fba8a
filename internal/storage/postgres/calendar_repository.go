package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookwell/engine/internal/domain"
)

// CalendarRepository reads businesses, resources, availability windows and
// blackout periods. The calendar is mutated by administrative flows outside
// the engine, so this repository is read-only.
type CalendarRepository struct {
	pool *pgxpool.Pool
}

func NewCalendarRepository(pool *pgxpool.Pool) *CalendarRepository {
	return &CalendarRepository{pool: pool}
}

func (r *CalendarRepository) GetBusiness(ctx context.Context, id string) (domain.Business, error) {
	const query = `SELECT id, name, timezone FROM businesses WHERE id = $1`

	var b domain.Business
	err := r.queryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Timezone)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Business{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Business{}, domain.ErrBusinessNotFound
		}
		return domain.Business{}, fmt.Errorf("get business: %w", err)
	}
	return b, nil
}

func (r *CalendarRepository) GetResource(ctx context.Context, id string) (domain.Resource, error) {
	const query = `
SELECT id, business_id, bookable_type, name, capacity, active
FROM resources
WHERE id = $1`

	var res domain.Resource
	err := r.queryRow(ctx, query, id).
		Scan(&res.ID, &res.BusinessID, &res.BookableType, &res.Name, &res.Capacity, &res.Active)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Resource{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Resource{}, domain.ErrResourceNotFound
		}
		return domain.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	return res, nil
}

func (r *CalendarRepository) ListResources(ctx context.Context, businessID, bookableType string) ([]domain.Resource, error) {
	const query = `
SELECT id, business_id, bookable_type, name, capacity, active
FROM resources
WHERE business_id = $1 AND active AND ($2 = '' OR bookable_type = $2)
ORDER BY name`

	rows, err := r.query(ctx, query, businessID, bookableType)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []domain.Resource
	for rows.Next() {
		var res domain.Resource
		if err := rows.Scan(&res.ID, &res.BusinessID, &res.BookableType, &res.Name, &res.Capacity, &res.Active); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

func (r *CalendarRepository) ListWindows(ctx context.Context, businessID string) ([]domain.AvailabilityWindow, error) {
	const query = `
SELECT id, business_id, resource_id, weekday, start_minute, end_minute, active
FROM availability_windows
WHERE business_id = $1 AND active
ORDER BY weekday, start_minute`

	rows, err := r.query(ctx, query, businessID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close()

	var windows []domain.AvailabilityWindow
	for rows.Next() {
		var w domain.AvailabilityWindow
		var weekday int
		if err := rows.Scan(&w.ID, &w.BusinessID, &w.ResourceID, &weekday, &w.StartMinute, &w.EndMinute, &w.Active); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		w.Weekday = time.Weekday(weekday)
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func (r *CalendarRepository) ListBlackouts(ctx context.Context, businessID string, from, to time.Time) ([]domain.BlackoutPeriod, error) {
	const query = `
SELECT id, business_id, resource_id, start_at, end_at, reason
FROM blackout_periods
WHERE business_id = $1 AND start_at < $3 AND end_at > $2
ORDER BY start_at`

	rows, err := r.query(ctx, query, businessID, from, to)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list blackouts: %w", err)
	}
	defer rows.Close()

	var blackouts []domain.BlackoutPeriod
	for rows.Next() {
		var b domain.BlackoutPeriod
		if err := rows.Scan(&b.ID, &b.BusinessID, &b.ResourceID, &b.StartAt, &b.EndAt, &b.Reason); err != nil {
			return nil, fmt.Errorf("scan blackout: %w", err)
		}
		blackouts = append(blackouts, b)
	}
	return blackouts, rows.Err()
}

func (r *CalendarRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *CalendarRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

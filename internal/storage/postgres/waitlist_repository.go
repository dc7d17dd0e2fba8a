package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookwell/engine/internal/domain"
)

// WaitlistRepository persists waitlist entries and their offer state.
type WaitlistRepository struct {
	pool *pgxpool.Pool
}

func NewWaitlistRepository(pool *pgxpool.Pool) *WaitlistRepository {
	return &WaitlistRepository{pool: pool}
}

func (r *WaitlistRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *WaitlistRepository) GetBusiness(ctx context.Context, businessID string) (domain.Business, error) {
	const query = `SELECT id, name, timezone FROM businesses WHERE id = $1`

	var b domain.Business
	err := r.queryRow(ctx, query, businessID).Scan(&b.ID, &b.Name, &b.Timezone)
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

func (r *WaitlistRepository) GetResource(ctx context.Context, resourceID string) (domain.Resource, error) {
	const query = `
SELECT id, business_id, bookable_type, name, capacity, active
FROM resources
WHERE id = $1`

	var res domain.Resource
	err := r.queryRow(ctx, query, resourceID).
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

func (r *WaitlistRepository) CreateEntry(ctx context.Context, entry domain.WaitlistEntry) error {
	const stmt = `
INSERT INTO waitlist_entries
	(id, business_id, resource_id, bookable_type, preferred_date, flexibility_days,
	 guest_name, guest_email, is_vip, queue_position, status,
	 claim_token, claim_expires_at, hold_id, offer_start_at, offer_end_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.exec(ctx, stmt,
		entry.ID,
		entry.BusinessID,
		entry.ResourceID,
		entry.BookableType,
		entry.PreferredDate,
		entry.FlexibilityDays,
		entry.GuestName,
		entry.GuestEmail,
		entry.VIP,
		entry.Position,
		entry.Status,
		entry.ClaimToken,
		entry.ClaimExpiresAt,
		entry.HoldID,
		entry.OfferStartAt,
		entry.OfferEndAt,
		entry.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create waitlist entry: %w", err)
	}
	return nil
}

func (r *WaitlistRepository) GetEntryForUpdate(ctx context.Context, entryID string) (domain.WaitlistEntry, error) {
	const query = entrySelect + `
WHERE id = $1
FOR UPDATE`

	e, err := scanEntry(r.queryRow(ctx, query, entryID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.WaitlistEntry{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.WaitlistEntry{}, domain.ErrEntryNotFound
		}
		return domain.WaitlistEntry{}, fmt.Errorf("get entry for update: %w", err)
	}
	return e, nil
}

func (r *WaitlistRepository) UpdateEntry(ctx context.Context, entry domain.WaitlistEntry) error {
	const stmt = `
UPDATE waitlist_entries
SET status = $2, queue_position = $3, claim_token = $4, claim_expires_at = $5,
    hold_id = $6, offer_start_at = $7, offer_end_at = $8
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		entry.ID,
		entry.Status,
		entry.Position,
		entry.ClaimToken,
		entry.ClaimExpiresAt,
		entry.HoldID,
		entry.OfferStartAt,
		entry.OfferEndAt,
	)
	if err != nil {
		return fmt.Errorf("update waitlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// ListWaiting returns waiting entries ordered for allocation: VIP entries
// first, then by earliest queue position.
func (r *WaitlistRepository) ListWaiting(ctx context.Context, businessID string) ([]domain.WaitlistEntry, error) {
	const query = entrySelect + `
WHERE business_id = $1 AND status = 'waiting'
ORDER BY is_vip DESC, queue_position ASC`

	rows, err := r.query(ctx, query, businessID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list waiting entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *WaitlistRepository) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]domain.WaitlistEntry, error) {
	const query = entrySelect + `
WHERE status = 'offered' AND claim_expires_at <= $1
ORDER BY claim_expires_at
LIMIT $2`

	rows, err := r.query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired offers: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *WaitlistRepository) NextPosition(ctx context.Context, businessID string) (int, error) {
	const query = `
SELECT COALESCE(MAX(queue_position), 0) + 1
FROM waitlist_entries
WHERE business_id = $1`

	var pos int
	if err := r.queryRow(ctx, query, businessID).Scan(&pos); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("next queue position: %w", err)
	}
	return pos, nil
}

const entrySelect = `
SELECT id, business_id, resource_id, bookable_type, preferred_date, flexibility_days,
       guest_name, guest_email, is_vip, queue_position, status,
       claim_token, claim_expires_at, hold_id, offer_start_at, offer_end_at, created_at
FROM waitlist_entries`

func scanEntry(row pgx.Row) (domain.WaitlistEntry, error) {
	var e domain.WaitlistEntry
	err := row.Scan(
		&e.ID, &e.BusinessID, &e.ResourceID, &e.BookableType, &e.PreferredDate, &e.FlexibilityDays,
		&e.GuestName, &e.GuestEmail, &e.VIP, &e.Position, &e.Status,
		&e.ClaimToken, &e.ClaimExpiresAt, &e.HoldID, &e.OfferStartAt, &e.OfferEndAt, &e.CreatedAt,
	)
	return e, err
}

func scanEntries(rows pgx.Rows) ([]domain.WaitlistEntry, error) {
	var entries []domain.WaitlistEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *WaitlistRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *WaitlistRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *WaitlistRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

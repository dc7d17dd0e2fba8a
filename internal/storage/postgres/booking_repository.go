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

// BookingRepository reads and mutates the booking ledger.
type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *BookingRepository) GetBookingForUpdate(ctx context.Context, bookingID string) (domain.Booking, error) {
	const query = `
SELECT id, business_id, resource_id, bookable_type, start_at, end_at, status, guest_name, guest_email, party_size, created_at
FROM bookings
WHERE id = $1
FOR UPDATE`

	var b domain.Booking
	err := r.queryRow(ctx, query, bookingID).
		Scan(&b.ID, &b.BusinessID, &b.ResourceID, &b.BookableType, &b.StartAt, &b.EndAt, &b.Status, &b.GuestName, &b.GuestEmail, &b.PartySize, &b.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Booking{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Booking{}, domain.ErrBookingNotFound
		}
		return domain.Booking{}, fmt.Errorf("get booking for update: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, bookingID string, status domain.BookingStatus) error {
	const stmt = `UPDATE bookings SET status = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, bookingID, status)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *BookingRepository) ListOccupying(ctx context.Context, resourceIDs []string, from, to time.Time) ([]domain.Booking, error) {
	const query = `
SELECT id, business_id, resource_id, bookable_type, start_at, end_at, status, guest_name, guest_email, party_size, created_at
FROM bookings
WHERE resource_id = ANY($1)
  AND status IN ('pending', 'confirmed', 'in_progress')
  AND start_at < $3 AND end_at > $2`

	rows, err := r.query(ctx, query, resourceIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list occupying bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.BusinessID, &b.ResourceID, &b.BookableType, &b.StartAt, &b.EndAt, &b.Status, &b.GuestName, &b.GuestEmail, &b.PartySize, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *BookingRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *BookingRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *BookingRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

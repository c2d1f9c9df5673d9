package cache

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WSTickets issues short-lived single-use tickets that let a browser open the
// admin event stream without putting the bearer credential in a URL.
type WSTickets struct {
	rdb *redis.Client
}

// NewWSTickets returns a ticket store using rdb (may be nil).
func NewWSTickets(rdb *redis.Client) *WSTickets {
	return &WSTickets{rdb: rdb}
}

// Issue stores a new ticket for subject.
func (w *WSTickets) Issue(ctx context.Context, subject string) (string, error) {
	if w.rdb == nil {
		return "", ErrUnavailable
	}
	ticket := uuid.NewString()
	if err := w.rdb.Set(ctx, WSTicketKey(ticket), subject, WSTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// Redeem consumes ticket and returns the subject it was issued for.
func (w *WSTickets) Redeem(ctx context.Context, ticket string) (string, bool, error) {
	if w.rdb == nil {
		return "", false, ErrUnavailable
	}
	if ticket == "" {
		return "", false, nil
	}
	subject, err := w.rdb.GetDel(ctx, WSTicketKey(ticket)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return subject, true, nil
}

package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates no draft exists under the ticket identifier.
var ErrNotFound = errors.New("draft: ticket not found")

// ErrEmptyTicketID rejects blank ticket identifiers.
var ErrEmptyTicketID = errors.New("draft: ticket id is required")

// Store persists serialized session drafts ("saved tickets") in Redis, keyed
// by a business ticket identifier. No expiry is enforced here; a saved ticket
// stays resumable until explicitly deleted.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore constructs a draft store.
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "pos"
	}
	return &Store{client: client, prefix: prefix}
}

// Save writes a serialized draft under the ticket identifier.
func (s *Store) Save(ctx context.Context, ticketID string, data []byte) error {
	key, err := s.key(ticketID)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("draft: save ticket %s: %w", ticketID, err)
	}
	return nil
}

// Load reads a serialized draft back.
func (s *Store) Load(ctx context.Context, ticketID string) ([]byte, error) {
	key, err := s.key(ticketID)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("draft: load ticket %s: %w", ticketID, err)
	}
	return data, nil
}

// Delete removes a saved ticket, typically after it has been resumed and
// finalized.
func (s *Store) Delete(ctx context.Context, ticketID string) error {
	key, err := s.key(ticketID)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}

// List returns the ticket identifiers with saved drafts.
func (s *Store) List(ctx context.Context) ([]string, error) {
	pattern := s.prefix + ":draft:*"
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("draft: list tickets: %w", err)
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.prefix+":draft:"))
	}
	return out, nil
}

func (s *Store) key(ticketID string) (string, error) {
	if strings.TrimSpace(ticketID) == "" {
		return "", ErrEmptyTicketID
	}
	return s.prefix + ":draft:" + ticketID, nil
}

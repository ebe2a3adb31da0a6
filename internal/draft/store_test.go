package draft

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, "pos"), mr
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	payload := []byte(`{"sessionId":"sess-1","items":[]}`)
	require.NoError(t, s.Save(context.Background(), "ticket-7", payload))
	got, err := s.Load(context.Background(), "ticket-7")
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDraftsDoNotExpire(t *testing.T) {
	s, mr := newStore(t)
	require.NoError(t, s.Save(context.Background(), "ticket-7", []byte("{}")))
	if ttl := mr.TTL("pos:draft:ticket-7"); ttl != 0 {
		t.Fatalf("drafts must not carry a TTL, got %s", ttl)
	}
}

func TestLoadMissingTicket(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Load(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Save(context.Background(), "ticket-7", []byte("{}")))
	require.NoError(t, s.Delete(context.Background(), "ticket-7"))
	_, err := s.Load(context.Background(), "ticket-7")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Save(context.Background(), "a", []byte("{}")))
	require.NoError(t, s.Save(context.Background(), "b", []byte("{}")))
	tickets, err := s.List(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, tickets)
}

func TestEmptyTicketID(t *testing.T) {
	s, _ := newStore(t)
	require.ErrorIs(t, s.Save(context.Background(), " ", []byte("{}")), ErrEmptyTicketID)
}

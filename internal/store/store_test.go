package store

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/scrumpts/cocoa-concierge/internal/database"
	"github.com/scrumpts/cocoa-concierge/internal/model"
)

// ---------------------------------------------------------------------------
// backends
// ---------------------------------------------------------------------------

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			db, err := database.OpenMemory(uuid.NewString())
			require.NoError(t, err)
			s, err := NewSQLStore(db)
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return NewRedisStore(rdb)
		},
		"nats": func(t *testing.T) Store {
			url := os.Getenv("TEST_NATS_URL")
			if url == "" {
				t.Skip("set TEST_NATS_URL to run the JetStream KV store tests")
			}
			nc, err := nats.Connect(url)
			require.NoError(t, err)
			t.Cleanup(nc.Close)
			js, err := jetstream.New(nc)
			require.NoError(t, err)
			s, err := NewKVStore(context.Background(), js)
			require.NoError(t, err)
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range backends() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func turns(contents ...string) []model.Turn {
	out := make([]model.Turn, 0, len(contents))
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		out = append(out, model.Turn{Role: role, Content: c, Timestamp: int64(1000 + i)})
	}
	return out
}

// uid keeps users distinct across runs against a shared NATS bucket.
func uid(name string) string {
	return name + "-" + uuid.NewString()
}

// ---------------------------------------------------------------------------
// contract
// ---------------------------------------------------------------------------

func TestStore_GetByUserAbsent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		conv, err := s.GetByUser(context.Background(), uid("nobody"))
		require.NoError(t, err)
		require.Nil(t, conv)
	})
}

func TestStore_InvalidUserID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, bad := range []string{"", strings.Repeat("x", MaxUserIDLength+1), "\xff\xfe"} {
			_, err := s.GetByUser(ctx, bad)
			require.ErrorIs(t, err, ErrInvalidUserID)
			_, err = s.Create(ctx, bad, nil)
			require.ErrorIs(t, err, ErrInvalidUserID)
		}
	})
}

func TestStore_CreateThenGet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := uid("u1")

		created, err := s.Create(ctx, user, turns("Hi", "Hello!"))
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.Equal(t, user, created.UserID)
		require.Equal(t, turns("Hi", "Hello!"), created.Turns)

		got, err := s.GetByUser(ctx, user)
		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, turns("Hi", "Hello!"), got.Turns)

		// repeated reads of unchanged state are identical
		again, err := s.GetByUser(ctx, user)
		require.NoError(t, err)
		require.Equal(t, got.Turns, again.Turns)
		require.Equal(t, got.ID, again.ID)
	})
}

func TestStore_CreateDuplicate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := uid("dup")

		first, err := s.Create(ctx, user, turns("a", "b"))
		require.NoError(t, err)

		_, err = s.Create(ctx, user, turns("c", "d"))
		require.ErrorIs(t, err, ErrDuplicateConversation)

		got, err := s.GetByUser(ctx, user)
		require.NoError(t, err)
		require.Equal(t, first.ID, got.ID)
		require.Equal(t, turns("a", "b"), got.Turns)
	})
}

func TestStore_ReplaceTurns(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := uid("rep")

		created, err := s.Create(ctx, user, turns("a", "b"))
		require.NoError(t, err)

		replaced, err := s.ReplaceTurns(ctx, created.ID, turns("a", "b", "c", "d"))
		require.NoError(t, err)
		require.Equal(t, created.ID, replaced.ID)
		require.Len(t, replaced.Turns, 4)

		got, err := s.GetByUser(ctx, user)
		require.NoError(t, err)
		require.Equal(t, turns("a", "b", "c", "d"), got.Turns)
	})
}

func TestStore_ReplaceTurnsUnknownID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		conv, err := s.ReplaceTurns(context.Background(), uuid.NewString(), turns("x"))
		require.NoError(t, err)
		require.Nil(t, conv)
	})
}

func TestStore_ReturnedTurnsAreCopies(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := uid("alias")

		in := turns("a", "b")
		created, err := s.Create(ctx, user, in)
		require.NoError(t, err)

		in[0].Content = "mutated input"
		created.Turns[1].Content = "mutated output"

		got, err := s.GetByUser(ctx, user)
		require.NoError(t, err)
		require.Equal(t, turns("a", "b"), got.Turns)
	})
}

func TestStore_ConcurrentCreateHasOneWinner(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := uid("race")

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.Create(ctx, user, turns("hi"))
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			require.ErrorIs(t, err, ErrDuplicateConversation)
		}
		require.Equal(t, 1, wins)
	})
}

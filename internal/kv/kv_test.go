package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testStore exercises the Store contract against any backend.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		if err := s.Set(ctx, "debate_config_1", []byte(`{"id":"1"}`)); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		got, err := s.Get(ctx, "debate_config_1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if string(got) != `{"id":"1"}` {
			t.Errorf("wrong value: %s", got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := s.Set(ctx, "debate_config_1", []byte(`{"id":"2"}`)); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		got, _ := s.Get(ctx, "debate_config_1")
		if string(got) != `{"id":"2"}` {
			t.Errorf("value not overwritten: %s", got)
		}
	})

	t.Run("Keys", func(t *testing.T) {
		s.Set(ctx, "debate_config_2", []byte("{}"))
		s.Set(ctx, "debate_summary_1", []byte("{}"))
		s.Set(ctx, "debate%config", []byte("{}"))

		keys, err := s.Keys(ctx, "debate_config_")
		if err != nil {
			t.Fatalf("keys failed: %v", err)
		}
		if len(keys) != 2 || keys[0] != "debate_config_1" || keys[1] != "debate_config_2" {
			t.Errorf("unexpected keys: %v", keys)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete(ctx, "debate_config_2"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := s.Get(ctx, "debate_config_2"); !errors.Is(err, ErrNotFound) {
			t.Errorf("key still present after delete: %v", err)
		}
		if err := s.Delete(ctx, "never-existed"); err != nil {
			t.Errorf("deleting a missing key should not fail: %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("abc")
	s.Set(ctx, "k", buf)
	buf[0] = 'x'

	got, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("store aliases caller buffer: %s", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "kv.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	testStore(t, s)

	t.Run("Persistent", func(t *testing.T) {
		ctx := context.Background()
		s.Set(ctx, "persist", []byte("yes"))
		s.Close()

		reopened, err := NewSQLiteStore(dbPath)
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer reopened.Close()

		got, err := reopened.Get(ctx, "persist")
		if err != nil || string(got) != "yes" {
			t.Errorf("value lost across reopen: %q, %v", got, err)
		}
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	s, err := NewRedisStore(ctx, RedisOptions{Addr: addr, Namespace: "rhetor-test:" + t.Name() + ":"})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer s.Close()

	keys, _ := s.Keys(ctx, "")
	for _, k := range keys {
		s.Delete(ctx, k)
	}

	testStore(t, s)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type record struct {
		Name string `json:"name"`
	}
	def := record{Name: "default"}

	t.Run("MissingYieldsDefault", func(t *testing.T) {
		if got := GetJSON(ctx, s, "nope", def); got != def {
			t.Errorf("got %+v, want default", got)
		}
	})

	t.Run("CorruptYieldsDefault", func(t *testing.T) {
		s.Set(ctx, "corrupt", []byte("{not json"))
		if got := GetJSON(ctx, s, "corrupt", def); got != def {
			t.Errorf("got %+v, want default", got)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		if !SetJSON(ctx, s, "rec", record{Name: "x"}) {
			t.Fatal("SetJSON reported failure")
		}
		if got := GetJSON(ctx, s, "rec", def); got.Name != "x" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("UnencodableFails", func(t *testing.T) {
		if SetJSON(ctx, s, "bad", make(chan int)) {
			t.Error("SetJSON should fail for unencodable values")
		}
	})
}

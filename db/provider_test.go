package db

import (
	"testing"
)

func providers(t *testing.T) map[string]Provider {
	t.Helper()
	leveldb, err := NewLevelDBProvider(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { leveldb.Close() })
	return map[string]Provider{
		"memory":  NewMemoryProvider(),
		"leveldb": leveldb,
	}
}

func TestProviderPutGet(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if err := p.Put([]byte("k"), []byte("v")); err != nil {
				t.Fatal(err)
			}
			got, err := p.Get([]byte("k"))
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "v" {
				t.Errorf("Expected v, got %s", got)
			}

			missing, err := p.Get([]byte("absent"))
			if err != nil {
				t.Fatal(err)
			}
			if missing != nil {
				t.Errorf("Expected nil for absent key, got %s", missing)
			}
		})
	}
}

func TestProviderHasDelete(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			if err := p.Put([]byte("k"), []byte("v")); err != nil {
				t.Fatal(err)
			}
			ok, err := p.Has([]byte("k"))
			if err != nil || !ok {
				t.Fatalf("Expected key to exist, ok=%v err=%v", ok, err)
			}
			if err := p.Delete([]byte("k")); err != nil {
				t.Fatal(err)
			}
			ok, err = p.Has([]byte("k"))
			if err != nil || ok {
				t.Fatalf("Expected key to be gone, ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestBatchCommit(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			batch := p.Batch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))

			// Staged writes are invisible before commit.
			ok, err := p.Has([]byte("a"))
			if err != nil || ok {
				t.Fatalf("Expected staged write to be invisible, ok=%v err=%v", ok, err)
			}

			if err := batch.Write(); err != nil {
				t.Fatal(err)
			}
			for _, k := range []string{"a", "b"} {
				ok, err := p.Has([]byte(k))
				if err != nil || !ok {
					t.Fatalf("Expected %s after commit, ok=%v err=%v", k, ok, err)
				}
			}
		})
	}
}

func TestTxManagerRollback(t *testing.T) {
	p := NewMemoryProvider()
	tm := NewTxManager(p)

	wantErr := tmTestError{}
	err := tm.WithBatch(func(batch Batch) error {
		batch.Put([]byte("a"), []byte("1"))
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Expected fn error surfaced verbatim, got %v", err)
	}

	ok, _ := p.Has([]byte("a"))
	if ok {
		t.Error("Expected no write after failed transaction")
	}
}

func TestTxManagerCommit(t *testing.T) {
	p := NewMemoryProvider()
	tm := NewTxManager(p)

	err := tm.WithBatch(func(batch Batch) error {
		batch.Put([]byte("a"), []byte("1"))
		batch.Put([]byte("b"), []byte("2"))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{"a", "b"} {
		ok, _ := p.Has([]byte(k))
		if !ok {
			t.Errorf("Expected %s after commit", k)
		}
	}
}

type tmTestError struct{}

func (tmTestError) Error() string { return "boom" }

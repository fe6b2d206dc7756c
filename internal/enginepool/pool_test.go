package enginepool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeEngine struct {
	id     int
	closed atomic.Int32
	dirty  bool
}

func (e *fakeEngine) Close() error {
	e.closed.Add(1)
	return nil
}

func newFakePool(t *testing.T, size int, reset func(*fakeEngine) error) (*Pool[*fakeEngine], *atomic.Int32) {
	t.Helper()
	var created atomic.Int32
	p, err := New(context.Background(), Config[*fakeEngine]{
		Name: "test",
		Size: size,
		New: func(context.Context) (*fakeEngine, error) {
			return &fakeEngine{id: int(created.Add(1))}, nil
		},
		Reset: reset,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close(context.Background()) })
	return p, &created
}

func TestReuseAndReset(t *testing.T) {
	p, created := newFakePool(t, 2, func(e *fakeEngine) error {
		e.dirty = false
		return nil
	})
	ctx := context.Background()
	e, err := p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	e.dirty = true
	p.Put(ctx, e)
	if p.Idle() != 1 || p.Active() != 0 {
		t.Errorf("got %d idle, %d active", p.Idle(), p.Active())
	}
	again, err := p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again != e {
		t.Error("idle engine not reused")
	}
	if again.dirty {
		t.Error("engine not reset on return")
	}
	if created.Load() != 1 {
		t.Errorf("created %d engines, want 1", created.Load())
	}
	p.Put(ctx, again)
}

func TestGetBlocksWhenExhausted(t *testing.T) {
	p, _ := newFakePool(t, 1, nil)
	e, err := p.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Get(ctx); err == nil {
		t.Fatal("got a second engine from a pool of one")
	}
	got := make(chan *fakeEngine)
	go func() {
		e, err := p.Get(context.Background())
		if err != nil {
			t.Error(err)
		}
		got <- e
	}()
	p.Put(context.Background(), e)
	select {
	case e2 := <-got:
		if e2 != e {
			t.Error("waiting borrower got a different engine")
		}
		p.Put(context.Background(), e2)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting borrower was not served")
	}
}

func TestFailedResetDiscardsEngine(t *testing.T) {
	p, created := newFakePool(t, 1, func(*fakeEngine) error { return errors.New("broken") })
	ctx := context.Background()
	e, err := p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Put(ctx, e)
	if e.closed.Load() != 1 {
		t.Errorf("engine closed %d times, want 1", e.closed.Load())
	}
	e2, err := p.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if e2 == e || created.Load() != 2 {
		t.Error("broken engine handed out again")
	}
	p.Discard(ctx, e2)
	if e2.closed.Load() != 1 {
		t.Error("discarded engine not closed")
	}
}

func TestConstructorError(t *testing.T) {
	p, err := New(context.Background(), Config[*fakeEngine]{
		Size: 1,
		New:  func(context.Context) (*fakeEngine, error) { return nil, errors.New("no traineddata") },
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Get(context.Background()); err == nil {
		t.Error("got an engine from a failing constructor")
	}
	if _, err := New(context.Background(), Config[*fakeEngine]{Size: 0}, nil); err == nil {
		t.Error("pool without constructor accepted")
	}
}

// Package enginepool keeps initialized OCR engines for reuse.
// Initializing an engine loads the traineddata, which takes far longer than recognizing a typical image.
package enginepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pool "github.com/jolestar/go-commons-pool/v2"
)

// Engine is anything the pool can hold.
type Engine interface {
	Close() error
}

// Config describes how the engines of a pool are made and recycled.
type Config[E Engine] struct {
	// Name identifies the pool in log messages, e.g. the languages of its engines
	Name string
	// Size is the maximum number of engines, idle or borrowed
	Size int
	// New creates and initializes an engine
	New func(ctx context.Context) (E, error)
	// Reset prepares a returned engine for the next borrower. An engine that
	// cannot be reset is closed.
	Reset func(E) error
}

// Pool is a bounded set of engines. Get blocks while all engines are borrowed.
type Pool[E Engine] struct {
	p    *pool.ObjectPool
	name string
	log  *slog.Logger
}

type factory[E Engine] struct {
	conf Config[E]
	log  *slog.Logger
}

func (f *factory[E]) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	e, err := f.conf.New(ctx)
	if err != nil {
		f.log.Error("Creating engine failed", "pool", f.conf.Name, "err", err)
		return nil, err
	}
	f.log.Debug("Engine created", "pool", f.conf.Name)
	return pool.NewPooledObject(e), nil
}

func (f *factory[E]) DestroyObject(_ context.Context, o *pool.PooledObject) error {
	f.log.Debug("Engine closed", "pool", f.conf.Name)
	return o.Object.(E).Close()
}

func (f *factory[E]) ValidateObject(context.Context, *pool.PooledObject) bool {
	return true
}

func (f *factory[E]) ActivateObject(context.Context, *pool.PooledObject) error {
	return nil
}

// PassivateObject runs when an engine is returned; a failure makes the pool destroy it.
func (f *factory[E]) PassivateObject(_ context.Context, o *pool.PooledObject) error {
	if f.conf.Reset == nil {
		return nil
	}
	if err := f.conf.Reset(o.Object.(E)); err != nil {
		f.log.Warn("Resetting engine failed, discarding it", "pool", f.conf.Name, "err", err)
		return err
	}
	return nil
}

// New returns an empty pool. Engines are created on demand.
func New[E Engine](ctx context.Context, conf Config[E], logger *slog.Logger) (*Pool[E], error) {
	if conf.New == nil {
		return nil, errors.New("engine pool needs a constructor")
	}
	if conf.Size < 1 {
		return nil, fmt.Errorf("invalid engine pool size %d", conf.Size)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pc := pool.NewDefaultPoolConfig()
	pc.MaxTotal = conf.Size
	pc.MaxIdle = conf.Size
	pc.BlockWhenExhausted = true
	p := pool.NewObjectPool(ctx, &factory[E]{conf: conf, log: logger}, pc)
	return &Pool[E]{p: p, name: conf.Name, log: logger}, nil
}

// Get borrows an engine, waiting until one is available or ctx is done.
// The engine must be handed back with Put or Discard.
func (p *Pool[E]) Get(ctx context.Context) (E, error) {
	o, err := p.p.BorrowObject(ctx)
	if err != nil {
		var zero E
		return zero, fmt.Errorf("borrowing engine from pool %s: %w", p.name, err)
	}
	return o.(E), nil
}

// Put returns e to the pool after resetting it.
func (p *Pool[E]) Put(ctx context.Context, e E) {
	if err := p.p.ReturnObject(ctx, e); err != nil {
		p.log.Warn("Returning engine to pool failed", "pool", p.name, "err", err)
	}
}

// Discard closes e instead of returning it, e.g. after a recognition failed in an unknown state.
func (p *Pool[E]) Discard(ctx context.Context, e E) {
	if err := p.p.InvalidateObject(ctx, e); err != nil {
		p.log.Warn("Discarding engine failed", "pool", p.name, "err", err)
	}
}

// Active returns the number of borrowed engines.
func (p *Pool[E]) Active() int {
	return p.p.GetNumActive()
}

// Idle returns the number of engines ready to be borrowed.
func (p *Pool[E]) Idle() int {
	return p.p.GetNumIdle()
}

// Close closes all idle engines. Engines returned later are closed as well.
func (p *Pool[E]) Close(ctx context.Context) {
	p.p.Close(ctx)
}

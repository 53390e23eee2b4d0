package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
)

var (
	ErrPoolClosed   = errors.New("engine pool closed")
	errBucketIsFull = errors.New("engine bucket at capacity")
)

type PoolConfig struct {
	BinaryPath string
	// PerOptions caps live processes per distinct Options; 0 derives it from NumCPU.
	PerOptions int
}

// Pool keeps warm engine processes bucketed by their Options.
type Pool struct {
	binaryPath string
	perOptions int

	mu      sync.Mutex
	closed  bool
	buckets map[Options]*bucket
	owners  map[*Session]*bucket
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	per := cfg.PerOptions
	if per <= 0 {
		per = defaultPerOptions()
	}
	return &Pool{
		binaryPath: cfg.BinaryPath,
		perOptions: per,
		buckets:    make(map[Options]*bucket),
		owners:     make(map[*Session]*bucket),
	}, nil
}

// Acquire hands out an idle process for opt, starts one if the bucket has
// room, or waits for a release.
func (p *Pool) Acquire(ctx context.Context, opt Options) (*Session, error) {
	b, err := p.bucketFor(opt)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case s := <-b.idle:
			if p.readyOrDiscard(ctx, b, s) {
				p.track(s, b)
				return s, nil
			}
			continue
		default:
		}

		s, err := b.create(ctx, p.binaryPath)
		if err == nil {
			p.track(s, b)
			return s, nil
		}
		if !errors.Is(err, errBucketIsFull) {
			return nil, err
		}

		select {
		case s := <-b.idle:
			if p.readyOrDiscard(ctx, b, s) {
				p.track(s, b)
				return s, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) readyOrDiscard(ctx context.Context, b *bucket, s *Session) bool {
	if s == nil {
		return false
	}
	if err := s.EnsureReady(ctx); err != nil {
		b.discard(s)
		return false
	}
	return true
}

// Release returns s to its bucket. A non-nil err means the process is suspect
// and is killed instead.
func (p *Pool) Release(s *Session, err error) {
	if s == nil {
		return
	}
	p.mu.Lock()
	b, ok := p.owners[s]
	delete(p.owners, s)
	closed := p.closed
	p.mu.Unlock()
	if !ok {
		_ = s.Close()
		return
	}
	if err != nil || closed || !b.put(s) {
		b.discard(s)
	}
}

// Close kills every idle process. Checked out processes die on Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	var errs []error
	for _, b := range buckets {
		errs = append(errs, b.drain()...)
	}
	return errors.Join(errs...)
}

// Live reports the number of running processes across all buckets.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.buckets {
		n += b.count()
	}
	return n
}

func (p *Pool) track(s *Session, b *bucket) {
	p.mu.Lock()
	p.owners[s] = b
	p.mu.Unlock()
}

func (p *Pool) bucketFor(opt Options) (*bucket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	b, ok := p.buckets[opt]
	if !ok {
		b = &bucket{opt: opt, capacity: p.perOptions, idle: make(chan *Session, p.perOptions)}
		p.buckets[opt] = b
	}
	return b, nil
}

type bucket struct {
	opt      Options
	capacity int

	mu    sync.Mutex
	total int
	idle  chan *Session
}

func (b *bucket) create(ctx context.Context, binaryPath string) (*Session, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketIsFull
	}
	b.total++
	b.mu.Unlock()

	s, err := NewSession(ctx, binaryPath, b.opt)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return s, nil
}

func (b *bucket) put(s *Session) bool {
	select {
	case b.idle <- s:
		return true
	default:
		return false
	}
}

func (b *bucket) discard(s *Session) {
	if s != nil {
		_ = s.Close()
	}
	b.decrement()
}

func (b *bucket) drain() []error {
	var errs []error
	for {
		select {
		case s := <-b.idle:
			if s == nil {
				continue
			}
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
			b.decrement()
		default:
			return errs
		}
	}
}

func (b *bucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

func (b *bucket) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func defaultPerOptions() int {
	return min(max(runtime.NumCPU(), 2), 4)
}

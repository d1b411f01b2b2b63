package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("connection pool closed")

// Pool keeps a small set of dedicated connections for reuse.
//
// Acquire hands out an idle connection when one is available and otherwise
// opens a new one, so callers never wait for a connection to be released.
// Release puts a connection back while there is room and closes it otherwise.
//
// A Pool is safe for concurrent use.
type Pool struct {
	db    *sql.DB
	conns chan *sql.Conn

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool of the given size and opens size connections up
// front. It fails if any of them cannot be established.
func NewPool(ctx context.Context, db *sql.DB, size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid pool size: %d", size)
	}

	p := &Pool{
		db:    db,
		conns: make(chan *sql.Conn, size),
	}
	for i := 0; i < size; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to open initial connection: %w", err)
		}
		p.conns <- conn
	}
	return p, nil
}

// Acquire returns an idle connection or a newly opened one.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case conn := <-p.conns:
		return conn, nil
	default:
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	return conn, nil
}

// Release returns conn to the pool, or closes it when the pool is full or
// closed.
func (p *Pool) Release(conn *sql.Conn) {
	if conn == nil {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		conn.Close()
		return
	}

	select {
	case p.conns <- conn:
	default:
		conn.Close()
	}
}

// Idle returns the number of connections waiting in the pool.
func (p *Pool) Idle() int {
	return len(p.conns)
}

// Close closes every idle connection. Connections still held by callers are
// closed when released. The underlying *sql.DB is left open.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for {
		select {
		case conn := <-p.conns:
			if err := conn.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}

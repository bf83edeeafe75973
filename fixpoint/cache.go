package fixpoint

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	_ "modernc.org/sqlite"
	"sync"
)

// ResultCache remembers solver verdicts by query digest. Only Safe and Unsafe
// verdicts are stored, crashes are always retried.
type ResultCache struct {
	db *sql.DB
	mu sync.RWMutex
}

const cacheSchema = `CREATE TABLE IF NOT EXISTS results (
	digest TEXT PRIMARY KEY,
	status INTEGER NOT NULL,
	detail TEXT NOT NULL
)`

// OpenCache opens (creating if needed) the sqlite cache at path.
// Use ":memory:" for a cache that lives as long as the process.
func OpenCache(path string) (*ResultCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open cache %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not initialise cache %s: %w", path, err)
	}
	return &ResultCache{db: db}, nil
}

func (c *ResultCache) Get(ctx context.Context, digest string) (Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var status int
	var detail string
	err := c.db.QueryRowContext(ctx, `SELECT status, detail FROM results WHERE digest = ?`, digest).Scan(&status, &detail)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("could not read cache: %w", err)
	}
	return Result{Status: Status(status), Detail: detail}, true, nil
}

func (c *ResultCache) Put(ctx context.Context, digest string, r Result) error {
	if r.Status == Crash {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO results (digest, status, detail) VALUES (?, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET status = excluded.status, detail = excluded.detail`,
		digest, int(r.Status), r.Detail)
	if err != nil {
		return fmt.Errorf("could not write cache: %w", err)
	}
	return nil
}

func (c *ResultCache) Close() error {
	return c.db.Close()
}

// CachingSolver consults a ResultCache before delegating to Solver
type CachingSolver struct {
	Solver Solver
	Cache  *ResultCache
}

var _ Solver = &CachingSolver{}

// identified is implemented by solvers whose verdicts depend on more than the query
type identified interface {
	Identity() string
}

// key is the query digest, salted with the identity of the inner solver if it has one
func (s *CachingSolver) key(q *Query) string {
	id, ok := s.Solver.(identified)
	if !ok {
		return q.Digest()
	}
	sum := sha256.Sum256([]byte(id.Identity() + "\x00" + q.Digest()))
	return hex.EncodeToString(sum[:])
}

func (s *CachingSolver) Solve(ctx context.Context, q *Query) (Result, error) {
	digest := s.key(q)
	if r, ok, err := s.Cache.Get(ctx, digest); err != nil {
		return Result{}, err
	} else if ok {
		logger.Debug("solver cache hit", "digest", digest[:12])
		return r, nil
	}
	r, err := s.Solver.Solve(ctx, q)
	if err != nil {
		return Result{}, err
	}
	return r, s.Cache.Put(ctx, digest, r)
}

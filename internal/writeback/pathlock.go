package writeback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// pathLocks serializes mutations per physical target path. The in-process
// mutex covers goroutines within one process; the flock file covers other
// processes working against the same targets.
type pathLocks struct {
	lockDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks(lockDir string) *pathLocks {
	return &pathLocks{
		lockDir: lockDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (p *pathLocks) mutexFor(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	mu, ok := p.locks[path]
	if !ok {
		mu = &sync.Mutex{}
		p.locks[path] = mu
	}
	return mu
}

func (p *pathLocks) lockFilePath(path string) string {
	sum := sha256.Sum256([]byte(path))
	return filepath.Join(p.lockDir, hex.EncodeToString(sum[:8])+".lock")
}

// acquire blocks until the target path's lock is held and returns the
// release function. Lock files are content-addressed into lockDir so
// artifact directories stay clean.
func (p *pathLocks) acquire(ctx context.Context, path string) (func(), error) {
	mu := p.mutexFor(path)
	mu.Lock()

	fileLock := flock.New(p.lockFilePath(path))
	ok, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("acquire target lock for %s: %w", path, err)
	}
	if !ok {
		mu.Unlock()
		return nil, fmt.Errorf("target lock for %s not acquired", path)
	}
	return func() {
		_ = fileLock.Unlock()
		mu.Unlock()
	}, nil
}

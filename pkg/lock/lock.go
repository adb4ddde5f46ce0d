// Package lock implements the advisory file locks described in
// SPEC_FULL.md §4.1 and §5: one lock file per named resource (catalog,
// journal), holder identified by process id plus a per-process uuid token
// so a reused pid after a crash cannot be mistaken for the same holder,
// and a fixed 30-second staleness window after which a lock is reclaimed.
package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/llm-memory/engine/pkg/memerr"
)

// StaleAfter is the wall-clock age after which a lock file is considered
// abandoned and may be removed by a new acquirer.
const StaleAfter = 30 * time.Second

// holderToken is generated once per process and embedded in every lock this
// process acquires, so two processes that happen to share a pid (container
// restarts, pid wraparound) are still distinguishable.
var holderToken = uuid.NewString()

type lockBody struct {
	PID   int       `json:"pid"`
	Token string    `json:"token"`
	TS    time.Time `json:"ts"`
}

// Handle is a held advisory lock; call Release to drop it.
type Handle struct {
	path string
	mu   *sync.Mutex // in-process mutex for the same resource name
}

// dir-scoped in-process mutexes, so goroutines within the same process
// queue instead of racing the same file-based reclaim logic against each
// other (the file lock alone only arbitrates across processes).
var (
	localMu   sync.Mutex
	localLock = map[string]*sync.Mutex{}
)

func localMutex(path string) *sync.Mutex {
	localMu.Lock()
	defer localMu.Unlock()
	m, ok := localLock[path]
	if !ok {
		m = &sync.Mutex{}
		localLock[path] = m
	}
	return m
}

// Acquire takes the named lock under locksDir (e.g. "catalog", "journal"),
// creating locksDir if needed. It blocks in-process callers via a mutex and
// fails fast (memerr.Locked) against other processes holding a fresh lock.
func Acquire(locksDir, name string) (*Handle, error) {
	if err := os.MkdirAll(locksDir, 0o755); err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "create locks dir %s", locksDir)
	}
	path := filepath.Join(locksDir, name+".lock")
	m := localMutex(path)
	m.Lock()

	if err := acquireFile(path); err != nil {
		m.Unlock()
		return nil, err
	}
	return &Handle{path: path, mu: m}, nil
}

func acquireFile(path string) error {
	if body, ok := readLockBody(path); ok {
		held := body.Token != holderToken && time.Since(body.TS) < StaleAfter
		if held {
			return memerr.New(memerr.Locked, "lock held by another process", map[string]any{
				"path": path,
				"pid":  body.PID,
			})
		}
		// Either it's our own prior lock (reentrant acquire, harmless) or
		// it's aged past StaleAfter — fall through and reclaim it.
	}
	return writeLockBody(path)
}

func readLockBody(path string) (lockBody, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockBody{}, false
	}
	var body lockBody
	if err := json.Unmarshal(data, &body); err != nil {
		return lockBody{}, false
	}
	return body, true
}

func writeLockBody(path string) error {
	body := lockBody{PID: os.Getpid(), Token: holderToken, TS: time.Now().UTC()}
	data, err := json.Marshal(body)
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal lock body")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return memerr.Wrap(memerr.IO, err, "write lock file %s", path)
	}
	return nil
}

// Release removes the lock file and frees the in-process mutex.
func (h *Handle) Release() error {
	defer h.mu.Unlock()
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return memerr.Wrap(memerr.IO, err, "remove lock file %s", h.path)
	}
	return nil
}

// With acquires name under locksDir, runs fn, and releases the lock even if
// fn panics or returns an error.
func With(locksDir, name string, fn func() error) error {
	h, err := Acquire(locksDir, name)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn()
}

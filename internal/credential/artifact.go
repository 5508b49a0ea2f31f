package credential

import (
	"os"
	"sync"
)

// Artifact is a run-private credentials file. It is owned by exactly one run
// and must be released before the run's worker is, on every exit path.
type Artifact struct {
	dir  string
	path string

	mu       sync.Mutex
	released bool
}

// Path returns the artifact file location handed to the deploy tool.
func (a *Artifact) Path() string { return a.path }

// Release erases the artifact and removes its directory. Idempotent. The
// file is overwritten with zeros before removal so secret bytes do not
// linger on filesystems that reuse blocks.
func (a *Artifact) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil
	}
	a.released = true

	shredFile(a.path)
	return os.RemoveAll(a.dir)
}

func shredFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	zeros := make([]byte, info.Size())
	if _, err := f.WriteAt(zeros, 0); err != nil {
		return
	}
	_ = f.Sync()
}

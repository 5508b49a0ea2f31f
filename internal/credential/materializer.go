// Package credential materializes secrets into a run-private configuration artifact.
package credential

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/deploygate/internal/secret"
)

// ArtifactFileName is the file the deploy tool reads inside the artifact dir.
const ArtifactFileName = "credentials.toml"

// maxConcurrentFetches bounds the secret-store fan-out per run.
const maxConcurrentFetches = 4

// WriteError marks a filesystem failure while building the artifact, as
// opposed to a secret lookup failure.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("writing config artifact: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Materialize fetches every ref from the store and writes the values into a
// fresh, run-private artifact. If any lookup fails the whole materialization
// fails and no artifact is left on disk. Refs whose artifact keys collide
// after normalization are rejected before any fetch. The artifact file is
// created with mode 0600 before any secret byte is written.
func Materialize(ctx context.Context, environment string, refs []string, store secret.Store) (*Artifact, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("no secret refs configured")
	}
	byKey := make(map[string]string, len(refs))
	for _, ref := range refs {
		key := tomlKey(ref)
		if prev, dup := byKey[key]; dup {
			return nil, fmt.Errorf("secret refs %q and %q collide on artifact key %q", prev, ref, key)
		}
		byKey[key] = ref
	}

	values := make(map[string][]byte, len(refs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, ref := range refs {
		g.Go(func() error {
			v, err := store.Get(gctx, ref)
			if err != nil {
				return err
			}
			mu.Lock()
			values[ref] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "deploygate-run-")
	if err != nil {
		return nil, &WriteError{Err: err}
	}

	path := filepath.Join(dir, ArtifactFileName)
	if err := writeArtifactFile(path, environment, values); err != nil {
		_ = os.RemoveAll(dir)
		return nil, &WriteError{Err: err}
	}

	return &Artifact{dir: dir, path: path}, nil
}

// writeArtifactFile creates the file mode-0600 with O_EXCL, then writes the
// rendered credentials. The restrictive mode is in place before any secret
// byte lands on disk.
func writeArtifactFile(path, environment string, values map[string][]byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(render(environment, values)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// render produces the TOML-style section the deploy tool expects. Keys are
// sorted so the artifact is deterministic for a given secret set.
func render(environment string, values map[string][]byte) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", environment)
	for _, name := range names {
		fmt.Fprintf(&b, "%s = %s\n", tomlKey(name), tomlString(values[name]))
	}
	return b.String()
}

// tomlString renders a secret value as a TOML basic string. Secret values are
// expected to be UTF-8 text.
func tomlString(v []byte) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range string(v) {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\u%04X`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func tomlKey(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

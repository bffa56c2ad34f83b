package snapshot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/blobstore"
)

const (
	defaultPrefix = "snapshots/"
	extension     = ".kmsn"
)

var (
	// ErrNotFound is returned when no snapshot has the requested name.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrInvalidName is returned for names outside [A-Za-z0-9._-]{1,128}.
	ErrInvalidName = errors.New("snapshot: invalid name")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Repository stores snapshots as envelopes in a blob store.
type Repository struct {
	store  blobstore.Store
	prefix string
	opts   Options
}

// NewRepository creates a repository that keeps its blobs under
// "snapshots/" in store.
func NewRepository(store blobstore.Store, opts Options) *Repository {
	return &Repository{
		store:  store,
		prefix: defaultPrefix,
		opts:   opts.withDefaults(),
	}
}

func (r *Repository) blobName(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return r.prefix + name + extension, nil
}

// Save encodes snap and stores it under name, replacing an existing snapshot.
func (r *Repository) Save(ctx context.Context, name string, snap kmeanslab.Snapshot) error {
	blob, err := r.blobName(name)
	if err != nil {
		return err
	}

	data, err := Encode(snap, r.opts)
	if err != nil {
		return err
	}

	if err := r.store.Put(ctx, blob, data); err != nil {
		return fmt.Errorf("snapshot: save %q: %w", name, err)
	}
	return nil
}

// Load reads and decodes the snapshot stored under name.
func (r *Repository) Load(ctx context.Context, name string) (kmeanslab.Snapshot, error) {
	blob, err := r.blobName(name)
	if err != nil {
		return kmeanslab.Snapshot{}, err
	}

	data, err := r.store.Get(ctx, blob)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return kmeanslab.Snapshot{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return kmeanslab.Snapshot{}, fmt.Errorf("snapshot: load %q: %w", name, err)
	}

	return Decode(data)
}

// Delete removes the snapshot stored under name.
func (r *Repository) Delete(ctx context.Context, name string) error {
	blob, err := r.blobName(name)
	if err != nil {
		return err
	}
	return r.store.Delete(ctx, blob)
}

// List returns the names of all stored snapshots, sorted.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	blobs, err := r.store.List(ctx, r.prefix)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(blobs))
	for _, b := range blobs {
		name, ok := strings.CutSuffix(strings.TrimPrefix(b, r.prefix), extension)
		if !ok || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}

	return names, nil
}

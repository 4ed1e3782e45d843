// Package blob reads and writes files that live either on the local
// filesystem or on google cloud storage (gs://bucket/object).
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	adst "go.airbusds-geo.com/gcp/storage"
	"google.golang.org/api/iterator"
)

var ErrNoGCS = errors.New("gs:// location without a storage client")

func IsGCS(name string) bool {
	return strings.HasPrefix(name, "gs://")
}

// Store dispatches operations on gs:// names to cloud storage and on other
// names to the local filesystem. A Store without clients only handles local
// files.
type Store struct {
	stcl   *storage.Client
	adstcl *adst.Client
}

func NewStore(stcl *storage.Client, adstcl *adst.Client) *Store {
	return &Store{stcl: stcl, adstcl: adstcl}
}

// List returns the sorted full names of the files directly under dir whose
// name ends with suffix.
func (s *Store) List(ctx context.Context, dir, suffix string) ([]string, error) {
	var names []string
	if IsGCS(dir) {
		if s.stcl == nil {
			return nil, ErrNoGCS
		}
		bucket, prefix, err := adst.Parse(strings.TrimSuffix(dir, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid dir %s: %w", dir, err)
		}
		it := s.stcl.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", dir, err)
			}
			if attrs.Prefix != "" || !strings.HasSuffix(attrs.Name, suffix) {
				continue
			}
			names = append(names, "gs://"+bucket+"/"+attrs.Name)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
				continue
			}
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Create opens name for writing. Objects on cloud storage are only committed
// once the returned writer is closed without error.
func (s *Store) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if IsGCS(name) {
		if s.stcl == nil {
			return nil, ErrNoGCS
		}
		b, o, err := adst.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("invalid dst %s: %w", name, err)
		}
		return s.stcl.Bucket(b).Object(o).NewWriter(ctx), nil
	}
	w, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return w, nil
}

// MkdirAll creates a local directory. Cloud storage has no directories, so
// gs:// names are left untouched.
func (s *Store) MkdirAll(name string) (bool, error) {
	if IsGCS(name) {
		return false, nil
	}
	if _, err := os.Stat(name); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(name, 0o755); err != nil {
		return false, fmt.Errorf("mkdir %s: %w", name, err)
	}
	return true, nil
}

// Upload moves the local file src to dst.
func (s *Store) Upload(ctx context.Context, dst, src string) error {
	if IsGCS(dst) {
		if s.adstcl == nil {
			return ErrNoGCS
		}
		if err := s.adstcl.UploadFromFile(ctx, dst, src); err != nil {
			return fmt.Errorf("upload %s: %w", dst, err)
		}
		return os.Remove(src)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s->%s: %w", src, dst, err)
	}
	return nil
}

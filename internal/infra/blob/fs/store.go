// Package fs implements a blob store on a local directory.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"farmcore/internal/blob/core"
)

const metaSuffix = ".meta"

// Store maps keys to relative file paths under a root directory. A sidecar
// file (key + ".meta") records the content type. Not safe for concurrent
// writers of the same key.
type Store struct {
	root string
}

var _ core.Store = (*Store)(nil)

// New returns a filesystem blob store rooted at path, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// sanitizeKey rejects empty, absolute and path-traversing keys.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	return filepath.FromSlash(key), nil
}

type sidecar struct {
	ContentType string `json:"content_type,omitempty"`
}

// Put writes a new blob; it fails when the key already exists.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return core.Info{}, err
	}
	path := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.Info{}, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return core.Info{}, fmt.Errorf("blob %s already exists", key)
		}
		return core.Info{}, err
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return core.Info{}, err
	}
	if opts.ContentType != "" {
		meta, _ := json.Marshal(sidecar{ContentType: opts.ContentType})
		if err := os.WriteFile(path+metaSuffix, meta, 0o644); err != nil {
			_ = os.Remove(path)
			return core.Info{}, err
		}
	}
	info, err := s.stat(key, path)
	if err != nil {
		return core.Info{}, err
	}
	info.Size = size
	return info, nil
}

func (s *Store) stat(key, path string) (core.Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return core.Info{}, fmt.Errorf("blob %s not found", key)
	}
	info := core.Info{Key: key, Size: st.Size(), LastModified: st.ModTime().UTC()}
	if raw, err := os.ReadFile(path + metaSuffix); err == nil {
		var sc sidecar
		if json.Unmarshal(raw, &sc) == nil {
			info.ContentType = sc.ContentType
		}
	}
	return info, nil
}

// Get returns blob metadata and a reader over its content.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return core.Info{}, nil, err
	}
	rel, _ := sanitizeKey(key)
	f, err := os.Open(filepath.Join(s.root, rel))
	if err != nil {
		return core.Info{}, nil, fmt.Errorf("blob %s not found", key)
	}
	return info, f, nil
}

// Head returns blob metadata.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return core.Info{}, err
	}
	return s.stat(key, filepath.Join(s.root, rel))
}

// Delete removes a blob. It reports whether the blob existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return false, err
	}
	path := filepath.Join(s.root, rel)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(path + metaSuffix)
	return true, nil
}

// List returns metadata for every blob whose key starts with prefix, sorted
// by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return err
		}
		rel, rerr := filepath.Rel(s.root, path)
		if rerr != nil {
			return rerr
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, serr := s.stat(key, path)
		if serr != nil {
			return serr
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

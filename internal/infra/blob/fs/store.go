package fs

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"viewcore/internal/blob/core"
)

const metaSuffix = ".meta"

// Store implements core.Store using the local filesystem. Each key maps to
// a file under root with a JSON sidecar (file + ".meta") holding metadata.
type Store struct {
	root string
}

// New returns a filesystem-backed blob store rooted at path, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the directory holding the blobs.
func (s *Store) Root() string { return s.root }

func (s *Store) pathFor(key string) (clean, dataPath string, err error) {
	clean, err = core.CleanKey(key)
	if err != nil {
		return "", "", err
	}
	if strings.HasSuffix(clean, metaSuffix) {
		return "", "", errors.Join(core.ErrInvalidKey, errors.New("reserved .meta suffix"))
	}
	return clean, filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

type metaFile struct {
	Metadata  map[string]string `json:"metadata,omitempty"`
	Size      int64             `json:"size"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (s *Store) Put(_ context.Context, key string, data []byte, metadata map[string]string) (core.Object, error) {
	clean, dataPath, err := s.pathFor(key)
	if err != nil {
		return core.Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Object{}, err
	}
	if err := writeAtomic(dataPath, data); err != nil {
		return core.Object{}, err
	}
	mf := metaFile{Metadata: core.CloneMetadata(metadata), Size: int64(len(data)), UpdatedAt: time.Now().UTC()}
	b, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return core.Object{}, err
	}
	if err := writeAtomic(dataPath+metaSuffix, b); err != nil {
		return core.Object{}, err
	}
	return mf.object(clean), nil
}

// writeAtomic streams to a temp file in the target directory and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) Get(_ context.Context, key string) (core.Object, []byte, error) {
	clean, dataPath, err := s.pathFor(key)
	if err != nil {
		return core.Object{}, nil, err
	}
	data, err := os.ReadFile(dataPath)
	if err != nil {
		return core.Object{}, nil, notFound(err)
	}
	mf, err := readMeta(dataPath + metaSuffix)
	if err != nil {
		return core.Object{}, nil, notFound(err)
	}
	return mf.object(clean), data, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Object, error) {
	clean, dataPath, err := s.pathFor(key)
	if err != nil {
		return core.Object{}, err
	}
	mf, err := readMeta(dataPath + metaSuffix)
	if err != nil {
		return core.Object{}, notFound(err)
	}
	return mf.object(clean), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	_, dataPath, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(dataPath + metaSuffix)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Object, error) {
	var out []core.Object
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(p, metaSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		mf, err := readMeta(p)
		if err != nil {
			return err
		}
		out = append(out, mf.object(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m metaFile) object(key string) core.Object {
	return core.Object{Key: key, Size: m.Size, Metadata: core.CloneMetadata(m.Metadata), LastModified: m.UpdatedAt}
}

func readMeta(path string) (metaFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return metaFile{}, err
	}
	var mf metaFile
	if err := json.Unmarshal(b, &mf); err != nil {
		return metaFile{}, err
	}
	return mf, nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return core.ErrNotFound
	}
	return err
}

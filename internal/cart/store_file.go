package cart

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON document per session under dir. Writes go through
// a temp file and rename so readers never see a torn cart.
type FileStore struct {
	dir string
}

type fileDoc struct {
	Items []Item `json:"items"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cart dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, sessionID string) (Cart, error) {
	raw, err := os.ReadFile(s.path(sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return Cart{}, storageErr("load", sessionID, err)
	}

	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Cart{}, storageErr("load", sessionID, fmt.Errorf("decode: %w", err))
	}
	if doc.Items == nil {
		doc.Items = []Item{}
	}
	return Cart{Items: doc.Items}, nil
}

func (s *FileStore) Save(ctx context.Context, sessionID string, c Cart) error {
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	raw, err := json.MarshalIndent(fileDoc{Items: items}, "", "  ")
	if err != nil {
		return storageErr("save", sessionID, err)
	}

	if err := s.writeAtomic(s.path(sessionID), raw); err != nil {
		return storageErr("save", sessionID, err)
	}
	return nil
}

func (s *FileStore) writeAtomic(dst string, raw []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".cart-*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(raw); err != nil {
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
	return os.Rename(tmp.Name(), dst)
}

func (s *FileStore) path(sessionID string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(sessionID))
	return filepath.Join(s.dir, name+".json")
}

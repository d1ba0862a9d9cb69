package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		config.Dir = "cache"
	}
	return &localStore{dir: config.Dir}, nil
}

func validKey(parts ...string) error {
	for _, p := range parts {
		if p == "" || strings.Contains(p, "/") || strings.Contains(p, "\\") || strings.Contains(p, "..") {
			return fmt.Errorf("invalid cache key")
		}
	}
	return nil
}

func (s *localStore) path(category, key string) string {
	return filepath.Join(s.dir, category, key+".json")
}

func (s *localStore) Save(ctx context.Context, category, key string, data []byte) error {
	_ = ctx
	if err := validKey(category, key); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(s.dir, category), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path(category, key), data, 0o644)
}

func (s *localStore) Load(ctx context.Context, category, key string) ([]byte, error) {
	_ = ctx
	if err := validKey(category, key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(category, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *localStore) Delete(ctx context.Context, category, key string) error {
	_ = ctx
	if err := validKey(category, key); err != nil {
		return err
	}
	err := os.Remove(s.path(category, key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *localStore) Clear(ctx context.Context, category string) error {
	_ = ctx
	if err := validKey(category); err != nil {
		return err
	}
	dir := filepath.Join(s.dir, category)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLの先頭（echoのStaticでこのパスを公開する）
const PublicPrefix = "/images/"

// 商品画像をローカルディスクに保存する
type LocalImageStore struct {
	dir string
}

func NewLocalImageStore(dir string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalImageStore{dir: dir}, nil
}

func (s *LocalImageStore) Dir() string {
	return s.dir
}

// 元のファイル名は拡張子だけ使う
func (s *LocalImageStore) Save(_ context.Context, originalName string, r io.Reader) (string, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}

	return PublicPrefix + name, nil
}

// 既に無ければ何もしない
func (s *LocalImageStore) Delete(_ context.Context, url string) error {
	name := strings.TrimPrefix(url, PublicPrefix)
	if name == "" || name == url || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid image url: %q", url)
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image file: %w", err)
	}
	return nil
}

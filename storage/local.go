package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader 开发与测试用：写到本地目录，由路由的静态文件服务对外暴露
type LocalUploader struct {
	Dir     string
	BaseURL string // 例如 http://localhost:3001/uploads
}

func NewLocal(dir, baseURL string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalUploader{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (u *LocalUploader) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	// key 只允许单层文件名，防目录穿越
	name := filepath.Base(filepath.Clean(key))
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("bad upload key %q", key)
	}
	dst, err := os.Create(filepath.Join(u.Dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, r); err != nil {
		return "", err
	}
	return u.BaseURL + "/" + name, nil
}

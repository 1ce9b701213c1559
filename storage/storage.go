package storage

import (
	"context"
	"io"
)

// Uploader 把对象写入 blob 存储，返回可公开访问的 URL。
// 不承诺按 URL 删除；上层只负责清掉存的字段。
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

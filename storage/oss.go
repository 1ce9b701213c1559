package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSUploader 阿里云 OSS 上的公共读 bucket
type OSSUploader struct {
	bucket     *oss.Bucket
	endpoint   string
	bucketName string
}

func NewOSS(endpoint, keyID, keySecret, bucketName string) (*OSSUploader, error) {
	client, err := oss.New(endpoint, keyID, keySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	b, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", bucketName, err)
	}
	return &OSSUploader{bucket: b, endpoint: endpoint, bucketName: bucketName}, nil
}

func (u *OSSUploader) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	opts := []oss.Option{}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := u.bucket.PutObject(key, r, opts...); err != nil {
		return "", fmt.Errorf("oss put %s: %w", key, err)
	}
	return fmt.Sprintf("https://%s.%s/%s", u.bucketName, u.endpoint, key), nil
}

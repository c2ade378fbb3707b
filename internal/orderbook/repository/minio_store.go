package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

const (
	minioObjectPrefix = "results/"
	minioExpiresMeta  = "Expires-At"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// MinIOResultStore 基于对象存储的结果存储。过期时间写在对象元数据里，
// 下载时校验，过期对象在访问时删除。
type MinIOResultStore struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

func NewMinIOResultStore(client *minio.Client, bucket string) *MinIOResultStore {
	return &MinIOResultStore{client: client, bucket: bucket, now: time.Now}
}

// EnsureBucket 创建 bucket（若不存在）
func (s *MinIOResultStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

func (s *MinIOResultStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	_, err := s.client.PutObject(ctx, s.bucket, minioObjectPrefix+id+".xlsx",
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: xlsxContentType,
			UserMetadata: map[string]string{
				minioExpiresMeta: s.now().Add(ttl).UTC().Format(time.RFC3339),
			},
		})
	if err != nil {
		return fmt.Errorf("put result object: %w", err)
	}
	return nil
}

func (s *MinIOResultStore) Take(ctx context.Context, id string) ([]byte, error) {
	key := minioObjectPrefix + id + ".xlsx"
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.notFoundOr(err, "get result object")
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, s.notFoundOr(err, "stat result object")
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read result object: %w", err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return nil, fmt.Errorf("remove result object: %w", err)
	}
	if expired(info.UserMetadata, s.now()) {
		return nil, ErrResultNotFound
	}
	return data, nil
}

func (s *MinIOResultStore) notFoundOr(err error, op string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrResultNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// expired reads the expiry stamp; the metadata key case depends on the server.
func expired(meta map[string]string, now time.Time) bool {
	for k, v := range meta {
		if !strings.EqualFold(k, minioExpiresMeta) && !strings.EqualFold(k, "X-Amz-Meta-"+minioExpiresMeta) {
			continue
		}
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return false
		}
		return !now.Before(at)
	}
	return false
}

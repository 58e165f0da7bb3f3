package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"MelodyMind/config"
	"MelodyMind/logger"
)

const songPrefix = "songs/"

// SongStore 远程上传的歌曲保存在 MinIO 中，播放时签发临时 URL
type SongStore struct {
	client     *minio.Client
	bucket     string
	region     string
	presignTTL time.Duration
}

// NewSongStore 创建客户端，不会立即连接服务器
func NewSongStore(cfg *config.Config) (*SongStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SongStore{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion, presignTTL: ttl}, nil
}

// Bucket 返回存储桶名称
func (s *SongStore) Bucket() string {
	return s.bucket
}

// EnsureBucket 检查存储桶是否存在，不存在时创建
func (s *SongStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		logger.Info("存储桶已存在", logger.String("bucket", s.bucket))
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("成功创建存储桶", logger.String("bucket", s.bucket))
	return nil
}

// ObjectKey 歌曲对象路径：songs/{songID}{ext}
func ObjectKey(songID, filename string) string {
	return songPrefix + songID + strings.ToLower(path.Ext(filename))
}

// Upload 上传音频文件，size 未知时传 -1
func (s *SongStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return minio.UploadInfo{}, fmt.Errorf("上传文件失败: %w", err)
	}
	logger.Info("歌曲上传成功",
		logger.String("key", key),
		logger.String("size", formatSize(info.Size)))
	return info, nil
}

// Stat 获取对象信息
func (s *SongStore) Stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	return s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
}

// Remove 删除对象，上传后建库失败时回滚用
func (s *SongStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// PresignedURL 签发临时播放地址
func (s *SongStore) PresignedURL(ctx context.Context, key string) (*url.URL, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("生成播放地址失败: %w", err)
	}
	return u, nil
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int
	TotalSize    int64
	LastModified time.Time
}

// Stats 遍历前缀下的所有对象
func (s *SongStore) Stats(ctx context.Context, prefix string) (*BucketStats, error) {
	stats := &BucketStats{}
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
	}
	return stats, nil
}

// String 打印用
func (b *BucketStats) String() string {
	return fmt.Sprintf("%d objects, %s, last modified %s",
		b.TotalObjects, formatSize(b.TotalSize), b.LastModified.Format("2006-01-02 15:04:05"))
}

// ContentTypeFor 从文件名推断音频类型
func ContentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".aac":
		return "audio/aac"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// formatSize 格式化文件大小
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

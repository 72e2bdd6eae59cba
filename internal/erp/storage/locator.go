package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-erp/internal/config"
	"github.com/bitfantasy/nimo-erp/internal/erp/service"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const defaultPresignExpiry = 15 * time.Minute

// MinIOLocator 文件ID即对象名，返回预签名下载地址
type MinIOLocator struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinIOLocator 创建 MinIO 定位器
func NewMinIOLocator(client *minio.Client, bucket string, expiry time.Duration) *MinIOLocator {
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &MinIOLocator{client: client, bucket: bucket, expiry: expiry}
}

// FileURL 生成预签名 GET 地址
func (l *MinIOLocator) FileURL(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("empty file id")
	}
	u, err := l.client.PresignedGetObject(ctx, l.bucket, fileID, l.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", fileID, err)
	}
	return u.String(), nil
}

// PathLocator 未配置对象存储时使用的本地路径
type PathLocator struct {
	prefix string
}

// NewPathLocator prefix 默认为 /uploads
func NewPathLocator(prefix string) *PathLocator {
	if prefix == "" {
		prefix = "/uploads"
	}
	return &PathLocator{prefix: strings.TrimRight(prefix, "/")}
}

// FileURL 返回 <prefix>/<fileID>
func (l *PathLocator) FileURL(_ context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("empty file id")
	}
	return l.prefix + "/" + url.PathEscape(fileID), nil
}

// NewLocator 根据配置选择定位器，MinIO 初始化失败时退回本地路径
func NewLocator(cfg config.MinIOConfig, logger *zap.Logger) service.FileLocator {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return NewPathLocator("")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("minio client init failed, falling back to local paths", zap.Error(err))
		}
		return NewPathLocator("")
	}
	return NewMinIOLocator(client, cfg.Bucket, cfg.PresignExpiry)
}

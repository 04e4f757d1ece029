// Package minio stores pipeline artifacts (prepared receptors, ligand
// variants, pose files, engine logs) in S3-compatible object storage.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

// StorageAPI is the subset of the minio client the artifact store needs.
// GetObject returns an io.ReadCloser rather than *minio.Object so the
// interface can be mocked without a live connection.
type StorageAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// minioAPI adapts *minio.Client to StorageAPI.
type minioAPI struct {
	*minio.Client
}

func (a minioAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return a.Client.GetObject(ctx, bucketName, objectName, opts)
}

// BucketConfig names the buckets each artifact class lands in.
type BucketConfig struct {
	Receptors string `mapstructure:"receptors"`
	Ligands   string `mapstructure:"ligands"`
	Poses     string `mapstructure:"poses"`
	Logs      string `mapstructure:"logs"`
}

type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	Buckets         BucketConfig  `mapstructure:"buckets"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`

	// LogRetentionDays expires engine logs via a bucket lifecycle rule.
	LogRetentionDays int `mapstructure:"log_retention_days"`
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PresignExpiry == 0 {
		cfg.PresignExpiry = 1 * time.Hour
	}
	if cfg.LogRetentionDays == 0 {
		cfg.LogRetentionDays = 30
	}
	if cfg.Buckets.Receptors == "" {
		cfg.Buckets.Receptors = "dockprep-receptors"
	}
	if cfg.Buckets.Ligands == "" {
		cfg.Buckets.Ligands = "dockprep-ligands"
	}
	if cfg.Buckets.Poses == "" {
		cfg.Buckets.Poses = "dockprep-poses"
	}
	if cfg.Buckets.Logs == "" {
		cfg.Buckets.Logs = "dockprep-logs"
	}
}

// Client wraps the object storage connection and owns bucket provisioning.
type Client struct {
	api    StorageAPI
	config *MinIOConfig
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

var ErrClientClosed = errors.New(errors.CodeStorageError, "minio client is closed")

// NewClient connects to the endpoint, verifies reachability, and ensures all
// artifact buckets exist.
func NewClient(cfg *MinIOConfig, log logging.Logger) (*Client, error) {
	applyDefaults(cfg)

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to create minio client")
	}

	c := &Client{api: minioAPI{mc}, config: cfg, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}
	if err := c.EnsureBuckets(ctx); err != nil {
		return nil, err
	}
	if err := c.setupLogRetention(ctx); err != nil {
		log.Warn("failed to set log retention lifecycle", logging.Err(err))
	}

	log.Info("object storage connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI builds a Client over a caller-supplied API. Test use.
func NewClientWithAPI(api StorageAPI, cfg *MinIOConfig, log logging.Logger) *Client {
	applyDefaults(cfg)
	return &Client{api: api, config: cfg, logger: log}
}

func (c *Client) buckets() []string {
	return []string{
		c.config.Buckets.Receptors,
		c.config.Buckets.Ligands,
		c.config.Buckets.Poses,
		c.config.Buckets.Logs,
	}
}

// EnsureBuckets creates any missing artifact buckets.
func (c *Client) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range c.buckets() {
		exists, err := c.api.BucketExists(ctx, bucket)
		if err != nil {
			return errors.Wrap(err, errors.CodeStorageError, "failed to check bucket existence")
		}
		if !exists {
			if err := c.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
				return errors.Wrap(err, errors.CodeStorageError,
					fmt.Sprintf("failed to create bucket %s", bucket))
			}
			c.logger.Info("created bucket", logging.String("bucket", bucket))
		}
	}
	return nil
}

func (c *Client) setupLogRetention(ctx context.Context) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{{
		ID:     "engine-log-cleanup",
		Status: "Enabled",
		Expiration: lifecycle.Expiration{
			Days: lifecycle.ExpirationDays(c.config.LogRetentionDays),
		},
	}}
	return c.api.SetBucketLifecycle(ctx, c.config.Buckets.Logs, cfg)
}

func (c *Client) API() StorageAPI { return c.api }

func (c *Client) Config() *MinIOConfig { return c.config }

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// HealthStatus reports reachability and per-bucket presence.
type HealthStatus struct {
	Healthy        bool
	Latency        time.Duration
	BucketStatuses map[string]bool
	Error          string
}

func (c *Client) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	_, err := c.api.ListBuckets(ctx)
	status := &HealthStatus{
		Healthy:        err == nil,
		Latency:        time.Since(start),
		BucketStatuses: make(map[string]bool),
	}
	if err != nil {
		status.Error = err.Error()
		return status, err
	}

	for _, b := range c.buckets() {
		exists, _ := c.api.BucketExists(ctx, b)
		status.BucketStatuses[b] = exists
		if !exists {
			status.Healthy = false
			status.Error = fmt.Sprintf("bucket %s missing", b)
		}
	}
	return status, nil
}

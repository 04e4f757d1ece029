package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

var ErrObjectNotFound = errors.New(errors.CodeNotFound, "object not found")

// ArtifactRef locates a stored artifact.
type ArtifactRef struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// ArtifactStore persists and retrieves the files a docking run produces.
// Receptors are keyed by accession so repeated runs against the same
// structure reuse the prepared file; everything else is keyed by run ID.
type ArtifactStore interface {
	PutReceptor(ctx context.Context, accession string, rigid, flex []byte) (*ArtifactRef, error)
	GetReceptor(ctx context.Context, accession string) ([]byte, error)
	PutLigand(ctx context.Context, runID, variantLabel string, pdbqt []byte) (*ArtifactRef, error)
	PutPoses(ctx context.Context, runID string, poses []byte) (*ArtifactRef, error)
	GetPoses(ctx context.Context, runID string) ([]byte, error)
	PutEngineLog(ctx context.Context, runID string, log []byte) (*ArtifactRef, error)
	PosesDownloadURL(ctx context.Context, runID string, expiry time.Duration) (string, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	DeleteRunArtifacts(ctx context.Context, runID string) error
}

type artifactStore struct {
	client *Client
	logger logging.Logger
}

func NewArtifactStore(client *Client, log logging.Logger) ArtifactStore {
	return &artifactStore{client: client, logger: log}
}

func receptorKey(accession string) string { return path.Join(accession, "receptor.pdbqt") }
func flexKey(accession string) string     { return path.Join(accession, "flex.pdbqt") }
func ligandKey(runID, label string) string {
	return path.Join(runID, fmt.Sprintf("ligand_%s.pdbqt", label))
}
func posesKey(runID string) string { return path.Join(runID, "poses.pdbqt") }
func logKey(runID string) string   { return path.Join(runID, "engine.log") }

func (s *artifactStore) put(ctx context.Context, bucket, key string, data []byte, contentType string) (*ArtifactRef, error) {
	info, err := s.client.API().PutObject(ctx, bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError,
			fmt.Sprintf("failed to store %s/%s", bucket, key))
	}
	s.logger.Debug("stored artifact",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size))
	return &ArtifactRef{Bucket: bucket, Key: key, Size: info.Size, ETag: info.ETag}, nil
}

func (s *artifactStore) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.API().GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError,
			fmt.Sprintf("failed to open %s/%s", bucket, key))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound.WithDetail(bucket + "/" + key)
		}
		return nil, errors.Wrap(err, errors.CodeStorageError,
			fmt.Sprintf("failed to read %s/%s", bucket, key))
	}
	return data, nil
}

func (s *artifactStore) PutReceptor(ctx context.Context, accession string, rigid, flex []byte) (*ArtifactRef, error) {
	bucket := s.client.Config().Buckets.Receptors
	ref, err := s.put(ctx, bucket, receptorKey(accession), rigid, "chemical/x-pdb")
	if err != nil {
		return nil, err
	}
	if len(flex) > 0 {
		if _, err := s.put(ctx, bucket, flexKey(accession), flex, "chemical/x-pdb"); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

func (s *artifactStore) GetReceptor(ctx context.Context, accession string) ([]byte, error) {
	return s.get(ctx, s.client.Config().Buckets.Receptors, receptorKey(accession))
}

func (s *artifactStore) PutLigand(ctx context.Context, runID, variantLabel string, pdbqt []byte) (*ArtifactRef, error) {
	return s.put(ctx, s.client.Config().Buckets.Ligands, ligandKey(runID, variantLabel), pdbqt, "chemical/x-pdb")
}

func (s *artifactStore) PutPoses(ctx context.Context, runID string, poses []byte) (*ArtifactRef, error) {
	return s.put(ctx, s.client.Config().Buckets.Poses, posesKey(runID), poses, "chemical/x-pdb")
}

func (s *artifactStore) GetPoses(ctx context.Context, runID string) ([]byte, error) {
	return s.get(ctx, s.client.Config().Buckets.Poses, posesKey(runID))
}

func (s *artifactStore) PutEngineLog(ctx context.Context, runID string, logData []byte) (*ArtifactRef, error) {
	return s.put(ctx, s.client.Config().Buckets.Logs, logKey(runID), logData, "text/plain")
}

func (s *artifactStore) PosesDownloadURL(ctx context.Context, runID string, expiry time.Duration) (string, error) {
	if expiry == 0 {
		expiry = s.client.Config().PresignExpiry
	}
	u, err := s.client.API().PresignedGetObject(ctx,
		s.client.Config().Buckets.Poses, posesKey(runID), expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorageError, "failed to presign pose download")
	}
	return u.String(), nil
}

func (s *artifactStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.API().StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.CodeStorageError, "failed to stat object")
	}
	return true, nil
}

// DeleteRunArtifacts removes every ligand, pose, and log object for a run.
// The prepared receptor is shared across runs and is left in place.
func (s *artifactStore) DeleteRunArtifacts(ctx context.Context, runID string) error {
	cfg := s.client.Config()
	for _, bucket := range []string{cfg.Buckets.Ligands, cfg.Buckets.Poses, cfg.Buckets.Logs} {
		objects := s.client.API().ListObjects(ctx, bucket, minio.ListObjectsOptions{
			Prefix:    runID + "/",
			Recursive: true,
		})
		for obj := range objects {
			if obj.Err != nil {
				return errors.Wrap(obj.Err, errors.CodeStorageError, "failed to list run artifacts")
			}
			if err := s.client.API().RemoveObject(ctx, bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
				return errors.Wrap(err, errors.CodeStorageError,
					fmt.Sprintf("failed to remove %s/%s", bucket, obj.Key))
			}
		}
	}
	return nil
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

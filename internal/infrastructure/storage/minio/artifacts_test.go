package minio

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
)

type MockStorageAPI struct {
	mock.Mock
}

func (m *MockStorageAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockStorageAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorageAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

func (m *MockStorageAPI) SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error {
	args := m.Called(ctx, bucketName, config)
	return args.Error(0)
}

func (m *MockStorageAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockStorageAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStorageAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockStorageAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

func (m *MockStorageAPI) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucketName, opts)
	return args.Get(0).(<-chan minio.ObjectInfo)
}

func (m *MockStorageAPI) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expiry, reqParams)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

type ArtifactStoreTestSuite struct {
	suite.Suite
	api   *MockStorageAPI
	store ArtifactStore
	cfg   *MinIOConfig
}

func (s *ArtifactStoreTestSuite) SetupTest() {
	s.api = new(MockStorageAPI)
	s.cfg = &MinIOConfig{}
	client := NewClientWithAPI(s.api, s.cfg, logging.NewNopLogger())
	s.store = NewArtifactStore(client, logging.NewNopLogger())
}

func (s *ArtifactStoreTestSuite) TestPutReceptor_RigidOnly() {
	s.api.On("PutObject", mock.Anything, "dockprep-receptors", "1ABC/receptor.pdbqt",
		mock.Anything, int64(4), mock.Anything).
		Return(minio.UploadInfo{Bucket: "dockprep-receptors", Key: "1ABC/receptor.pdbqt", Size: 4, ETag: "e"}, nil)

	ref, err := s.store.PutReceptor(context.Background(), "1ABC", []byte("ATOM"), nil)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "1ABC/receptor.pdbqt", ref.Key)
	s.api.AssertNumberOfCalls(s.T(), "PutObject", 1)
}

func (s *ArtifactStoreTestSuite) TestPutReceptor_WithFlex() {
	s.api.On("PutObject", mock.Anything, "dockprep-receptors", "1ABC/receptor.pdbqt",
		mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{Key: "1ABC/receptor.pdbqt"}, nil)
	s.api.On("PutObject", mock.Anything, "dockprep-receptors", "1ABC/flex.pdbqt",
		mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{Key: "1ABC/flex.pdbqt"}, nil)

	_, err := s.store.PutReceptor(context.Background(), "1ABC", []byte("ATOM"), []byte("BEGIN_RES"))
	require.NoError(s.T(), err)
	s.api.AssertNumberOfCalls(s.T(), "PutObject", 2)
}

func (s *ArtifactStoreTestSuite) TestGetPoses_RoundTrip() {
	payload := []byte("MODEL 1\nENDMDL\n")
	s.api.On("GetObject", mock.Anything, "dockprep-poses", "run-1/poses.pdbqt", mock.Anything).
		Return(io.NopCloser(bytes.NewReader(payload)), nil)

	data, err := s.store.GetPoses(context.Background(), "run-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), payload, data)
}

func (s *ArtifactStoreTestSuite) TestExists_False() {
	s.api.On("StatObject", mock.Anything, "dockprep-poses", "missing", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

	exists, err := s.store.Exists(context.Background(), "dockprep-poses", "missing")
	require.NoError(s.T(), err)
	assert.False(s.T(), exists)
}

func (s *ArtifactStoreTestSuite) TestExists_True() {
	s.api.On("StatObject", mock.Anything, "dockprep-poses", "run-1/poses.pdbqt", mock.Anything).
		Return(minio.ObjectInfo{Key: "run-1/poses.pdbqt"}, nil)

	exists, err := s.store.Exists(context.Background(), "dockprep-poses", "run-1/poses.pdbqt")
	require.NoError(s.T(), err)
	assert.True(s.T(), exists)
}

func (s *ArtifactStoreTestSuite) TestPosesDownloadURL_UsesDefaultExpiry() {
	u, _ := url.Parse("https://minio.local/dockprep-poses/run-1/poses.pdbqt?sig=x")
	s.api.On("PresignedGetObject", mock.Anything, "dockprep-poses", "run-1/poses.pdbqt",
		1*time.Hour, url.Values(nil)).
		Return(u, nil)

	got, err := s.store.PosesDownloadURL(context.Background(), "run-1", 0)
	require.NoError(s.T(), err)
	assert.Contains(s.T(), got, "poses.pdbqt")
}

func (s *ArtifactStoreTestSuite) TestDeleteRunArtifacts() {
	makeCh := func(keys ...string) <-chan minio.ObjectInfo {
		ch := make(chan minio.ObjectInfo, len(keys))
		for _, k := range keys {
			ch <- minio.ObjectInfo{Key: k}
		}
		close(ch)
		return ch
	}

	s.api.On("ListObjects", mock.Anything, "dockprep-ligands", mock.Anything).
		Return(makeCh("run-1/ligand_neutral.pdbqt"))
	s.api.On("ListObjects", mock.Anything, "dockprep-poses", mock.Anything).
		Return(makeCh("run-1/poses.pdbqt"))
	s.api.On("ListObjects", mock.Anything, "dockprep-logs", mock.Anything).
		Return(makeCh())
	s.api.On("RemoveObject", mock.Anything, "dockprep-ligands", "run-1/ligand_neutral.pdbqt", mock.Anything).
		Return(nil)
	s.api.On("RemoveObject", mock.Anything, "dockprep-poses", "run-1/poses.pdbqt", mock.Anything).
		Return(nil)

	err := s.store.DeleteRunArtifacts(context.Background(), "run-1")
	require.NoError(s.T(), err)
	s.api.AssertExpectations(s.T())
}

func TestArtifactStoreSuite(t *testing.T) {
	suite.Run(t, new(ArtifactStoreTestSuite))
}

func TestEnsureBuckets_CreatesMissing(t *testing.T) {
	api := new(MockStorageAPI)
	cfg := &MinIOConfig{}
	client := NewClientWithAPI(api, cfg, logging.NewNopLogger())

	api.On("BucketExists", mock.Anything, "dockprep-receptors").Return(true, nil)
	api.On("BucketExists", mock.Anything, "dockprep-ligands").Return(true, nil)
	api.On("BucketExists", mock.Anything, "dockprep-poses").Return(false, nil)
	api.On("BucketExists", mock.Anything, "dockprep-logs").Return(true, nil)
	api.On("MakeBucket", mock.Anything, "dockprep-poses", mock.Anything).Return(nil)

	require.NoError(t, client.EnsureBuckets(context.Background()))
	api.AssertExpectations(t)
}

func TestHealthCheck_MissingBucket(t *testing.T) {
	api := new(MockStorageAPI)
	client := NewClientWithAPI(api, &MinIOConfig{}, logging.NewNopLogger())

	api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{}, nil)
	api.On("BucketExists", mock.Anything, "dockprep-receptors").Return(true, nil)
	api.On("BucketExists", mock.Anything, "dockprep-ligands").Return(true, nil)
	api.On("BucketExists", mock.Anything, "dockprep-poses").Return(false, nil)
	api.On("BucketExists", mock.Anything, "dockprep-logs").Return(true, nil)

	status, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Error, "dockprep-poses")
}

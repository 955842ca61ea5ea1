package storage

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	mock.Mock
}

func (m *mockS3Client) Upload(ctx context.Context, uploadContainer s3manager.UploadInput) error {
	return m.Called(ctx, uploadContainer).Error(0)
}

func (m *mockS3Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockS3Client) Delete(ctx context.Context, bucket, key string) error {
	return m.Called(ctx, bucket, key).Error(0)
}

func TestUpload(t *testing.T) {
	client := &mockS3Client{}
	client.On("Upload", mock.Anything, mock.MatchedBy(func(input s3manager.UploadInput) bool {
		body, err := io.ReadAll(input.Body)
		return err == nil &&
			aws.StringValue(input.Bucket) == "attachments" &&
			aws.StringValue(input.Key) == "acme/eatt_1" &&
			aws.StringValue(input.ContentType) == "text/plain" &&
			string(body) == "hello"
	})).Return(nil)

	svc := NewStorageService(client, "attachments")

	require.NoError(t, svc.Upload(context.Background(), "acme/eatt_1", []byte("hello"), "text/plain"))
	client.AssertExpectations(t)

	assert.ErrorIs(t, svc.Upload(context.Background(), "", []byte("hello"), "text/plain"), ErrEmptyKey)
}

func TestDownload(t *testing.T) {
	client := &mockS3Client{}
	client.On("Download", mock.Anything, "attachments", "acme/eatt_1").Return([]byte("content"), nil)
	client.On("Download", mock.Anything, "attachments", "missing").Return(nil, errors.New("NoSuchKey"))

	svc := NewStorageService(client, "attachments")

	data, err := svc.Download(context.Background(), "acme/eatt_1")
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)

	_, err = svc.Download(context.Background(), "missing")
	assert.ErrorContains(t, err, "missing")

	_, err = svc.Download(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestDelete(t *testing.T) {
	client := &mockS3Client{}
	client.On("Delete", mock.Anything, "attachments", "acme/eatt_1").Return(nil)

	svc := NewStorageService(client, "attachments")

	require.NoError(t, svc.Delete(context.Background(), "acme/eatt_1"))
	require.NoError(t, svc.Delete(context.Background(), ""))
	client.AssertNumberOfCalls(t, "Delete", 1)
}

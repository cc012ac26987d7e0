package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	objects      map[string][]byte
	metadata     map[string]map[string]string
	contentTypes map[string]string
	bucketExists bool
	created      int
	putErr       error
	headErr      error
	createErr    error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{
		objects:      make(map[string][]byte),
		metadata:     make(map[string]map[string]string),
		contentTypes: make(map[string]string),
		bucketExists: true,
	}
}

func (m *mockS3Client) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := *in.Key
	m.objects[key] = body
	m.metadata[key] = in.Metadata
	m.contentTypes[key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	if !m.bucketExists {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3Client) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	m.created++
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.bucketExists = true
	return &s3.CreateBucketOutput{}, nil
}

func TestNewS3Archive_CreatesMissingBucket(t *testing.T) {
	client := newMockS3Client()
	client.bucketExists = false

	_, err := newS3Archive(context.Background(), client, "exports")
	require.NoError(t, err)
	assert.Equal(t, 1, client.created)
	assert.True(t, client.bucketExists)
}

func TestNewS3Archive_ExistingBucket(t *testing.T) {
	client := newMockS3Client()

	_, err := newS3Archive(context.Background(), client, "exports")
	require.NoError(t, err)
	assert.Zero(t, client.created)
}

func TestNewS3Archive_BucketRace(t *testing.T) {
	client := newMockS3Client()
	client.bucketExists = false
	client.createErr = &types.BucketAlreadyOwnedByYou{}

	_, err := newS3Archive(context.Background(), client, "exports")
	assert.NoError(t, err)
}

func TestNewS3Archive_Errors(t *testing.T) {
	_, err := newS3Archive(context.Background(), newMockS3Client(), "")
	assert.Error(t, err)

	client := newMockS3Client()
	client.bucketExists = false
	client.createErr = errors.New("access denied")
	_, err = newS3Archive(context.Background(), client, "exports")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3Archive_Put(t *testing.T) {
	client := newMockS3Client()
	archive, err := newS3Archive(context.Background(), client, "exports")
	require.NoError(t, err)

	body := []byte("Metric,Value\nTotal Users,3\n")
	key := "exports/2026/03/15/analytics-7d-2026-03-15.csv"
	require.NoError(t, archive.Put(context.Background(), key, body, "text/csv"))

	sum := sha256.Sum256(body)
	assert.Equal(t, body, client.objects[key])
	assert.Equal(t, "text/csv", client.contentTypes[key])
	assert.Equal(t, hex.EncodeToString(sum[:]), client.metadata[key]["checksum-sha256"])
}

func TestS3Archive_PutError(t *testing.T) {
	client := newMockS3Client()
	archive, err := newS3Archive(context.Background(), client, "exports")
	require.NoError(t, err)

	client.putErr = errors.New("slow down")
	err = archive.Put(context.Background(), "k", []byte("x"), "text/csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")
}

func TestS3Archive_Check(t *testing.T) {
	client := newMockS3Client()
	archive, err := newS3Archive(context.Background(), client, "exports")
	require.NoError(t, err)
	assert.NoError(t, archive.Check(context.Background()))

	client.headErr = errors.New("no route to host")
	assert.Error(t, archive.Check(context.Background()))
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryS3() *memoryS3 {
	return &memoryS3{objects: make(map[string][]byte)}
}

func (m *memoryS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memoryS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newMemoryS3()
	store := NewS3StoreWithClient(client, "models_customer_intention", "")

	require.NoError(t, Save(ctx, store, FinalModelArtifact, artifact{Name: "final"}))
	assert.Contains(t, client.objects, "models_customer_intention/final_model.joblib")
	assert.Equal(t, "s3://models_customer_intention/final_model.joblib", store.URI(FinalModelArtifact))

	var out artifact
	require.NoError(t, Load(ctx, store, FinalModelArtifact, &out))
	assert.Equal(t, "final", out.Name)

	ok, err := store.Exists(ctx, FinalModelArtifact)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestS3StoreMissingObject(t *testing.T) {
	ctx := context.Background()
	store := NewS3StoreWithClient(newMemoryS3(), "bucket", "prod")

	var out artifact
	err := Load(ctx, store, PipelineArtifact, &out)
	assert.True(t, errors.Is(err, ErrArtifactNotFound))

	ok, err := store.Exists(ctx, PipelineArtifact)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3StorePrefix(t *testing.T) {
	store := NewS3StoreWithClient(newMemoryS3(), "bucket", "prod")
	assert.Equal(t, "s3://bucket/prod/pipeline.joblib", store.URI(PipelineArtifact))
}

func TestPublishToS3(t *testing.T) {
	ctx := context.Background()
	local := newFileStore(t)
	remote := NewS3StoreWithClient(newMemoryS3(), "bucket", "")

	require.NoError(t, Save(ctx, local, PipelineArtifact, artifact{Name: "p"}))
	require.NoError(t, Publish(ctx, local, remote, PipelineArtifact))

	var out artifact
	require.NoError(t, Load(ctx, remote, PipelineArtifact, &out))
	assert.Equal(t, "p", out.Name)
}

package orders

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubS3 struct {
	puts []*s3.PutObjectInput
}

func (s *stubS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.puts = append(s.puts, params)
	return &s3.PutObjectOutput{}, nil
}

func (s *stubS3) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{}, nil
}

func TestArtifactStorePut(t *testing.T) {
	client := &stubS3{}
	store := NewArtifactStore(client, "artifacts-bucket", nil)
	require.True(t, store.Enabled())

	key, err := store.Put(context.Background(), "acct-1", "order-1", "before", "door.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "orders/acct-1/order-1/before/"))
	assert.True(t, strings.HasSuffix(key, "-door.jpg"))

	require.Len(t, client.puts, 1)
	assert.Equal(t, "artifacts-bucket", *client.puts[0].Bucket)
	assert.Equal(t, key, *client.puts[0].Key)
	assert.Equal(t, "image/jpeg", *client.puts[0].ContentType)
}

func TestArtifactStoreRejectsUnknownPhase(t *testing.T) {
	client := &stubS3{}
	store := NewArtifactStore(client, "artifacts-bucket", nil)

	_, err := store.Put(context.Background(), "acct-1", "order-1", "during", "door.jpg", "image/jpeg", nil)
	assert.Error(t, err)
	assert.Empty(t, client.puts)
}

func TestArtifactStoreDisabledWithoutBucket(t *testing.T) {
	client := &stubS3{}
	store := NewArtifactStore(client, "", nil)
	assert.False(t, store.Enabled())

	key, err := store.Put(context.Background(), "acct-1", "order-1", "before", "door.jpg", "image/jpeg", nil)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, client.puts)

	var nilStore *ArtifactStore
	assert.False(t, nilStore.Enabled())
}

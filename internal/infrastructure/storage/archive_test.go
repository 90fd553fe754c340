package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.inputs = append(f.inputs, in)
	body, _ := io.ReadAll(in.Body)
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestArchive(t *testing.T) {
	at := time.Date(2026, 1, 31, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	raw := []byte(`{"message_id":7,"text":"buy milk"}`)

	t.Run("Should write the payload encrypted under a dated key", func(t *testing.T) {
		client := &fakeS3{}
		a := NewS3Archive(client, "brain2-data", nil)

		key, err := a.Archive(context.Background(), "42", "100-00000000000000000007", raw, at)
		require.NoError(t, err)
		assert.Equal(t, "raw-events/42/2026/02/01/100-00000000000000000007.json", key)

		require.Len(t, client.inputs, 1)
		in := client.inputs[0]
		assert.Equal(t, "brain2-data", aws.ToString(in.Bucket))
		assert.Equal(t, key, aws.ToString(in.Key))
		assert.Equal(t, "application/json", aws.ToString(in.ContentType))
		assert.Equal(t, types.ServerSideEncryptionAes256, in.ServerSideEncryption)
		assert.Equal(t, int64(len(raw)), aws.ToInt64(in.ContentLength))
		assert.Equal(t, raw, client.bodies[0])
	})

	t.Run("Should return the upload error", func(t *testing.T) {
		cause := errors.New("access denied")
		_, err := NewS3Archive(&fakeS3{err: cause}, "brain2-data", nil).Archive(context.Background(), "42", "m1", raw, at)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "raw-events/42/2026/02/01/m1.json")
	})
}

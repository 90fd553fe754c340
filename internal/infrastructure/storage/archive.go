// Package storage keeps the immutable raw-event log of the assistant in S3.
// Every inbound payload is written once, before the message record that
// points at it.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// RawEventPrefix is the key prefix of archived inbound payloads.
const RawEventPrefix = "raw-events"

// PutObjectAPI is the subset of the S3 client the archive needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ PutObjectAPI = (*s3.Client)(nil)

// S3Archive writes raw events to a bucket.
type S3Archive struct {
	client PutObjectAPI
	bucket string
	logger *zap.Logger
}

// NewS3Archive creates an archive writing to bucket.
func NewS3Archive(client PutObjectAPI, bucket string, logger *zap.Logger) *S3Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Archive{client: client, bucket: bucket, logger: logger}
}

// RawEventKey is the object key of a payload received at for the message:
// raw-events/<user>/<yyyy>/<mm>/<dd>/<message>.json.
func RawEventKey(userID, messageID string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%s.json", RawEventPrefix, userID, at.Year(), int(at.Month()), at.Day(), messageID)
}

// Archive stores raw under the message's key with server-side encryption and
// returns the key. Redelivered messages map to the same key, so writing them
// again is harmless.
func (a *S3Archive) Archive(ctx context.Context, userID, messageID string, raw []byte, at time.Time) (string, error) {
	key := RawEventKey(userID, messageID, at)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(raw),
		ContentLength:        aws.Int64(int64(len(raw))),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("archive raw event %s: %w", key, err)
	}
	a.logger.Debug("Raw event archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(raw)))
	return key, nil
}

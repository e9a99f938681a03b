package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slmtnm/s3ranger/internal/config"
	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
	"github.com/slmtnm/s3ranger/internal/store/memory"
	"github.com/slmtnm/s3ranger/internal/store/minio"
)

func TestParseStart(t *testing.T) {
	tests := []struct {
		arg  string
		want pathkey.Location
	}{
		{"my-bucket", pathkey.New("my-bucket", "")},
		{"my-bucket/logs/2024/", pathkey.New("my-bucket", "logs/2024/")},
		{"s3://my-bucket/logs", pathkey.New("my-bucket", "logs")},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseStart(tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseStart("s3:///key")
	assert.True(t, errs.IsMalformedURI(err))
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	c, err := newClient(ctx, &store.Config{Provider: store.ProviderMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, c)
	assert.NoError(t, c.HeadBucket(ctx, "demo-logs"))

	c, err = newClient(ctx, &store.Config{
		Provider:    store.ProviderMinIO,
		EndpointURL: "http://localhost:9000",
		AccessKey:   "minioadmin",
		SecretKey:   "minioadmin",
	})
	require.NoError(t, err)
	assert.IsType(t, &minio.Driver{}, c)

	_, err = newClient(ctx, &store.Config{Provider: "gcs"})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestBucketHelp(t *testing.T) {
	msg := bucketHelp("photos", errs.New(errs.KindNotFound, "bucket \"photos\" does not exist"))
	assert.Contains(t, msg, "Error accessing bucket 'photos'")
	assert.Contains(t, msg, "Bucket name is correct")
	assert.NotContains(t, msg, "credentials have access")

	msg = bucketHelp("photos", errors.New("dial tcp: connection refused"))
	assert.Contains(t, msg, "credentials have access")
	assert.Contains(t, msg, "s3ranger configure")
}

func TestOpenLogger_Discards(t *testing.T) {
	log, closer, err := openLogger(config.LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.NoError(t, closer.Close())
}

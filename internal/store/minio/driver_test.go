package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/store"
)

func TestNew(t *testing.T) {
	d, err := New(&store.Config{
		Provider:     store.ProviderMinIO,
		EndpointURL:  "http://localhost:9000",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, d.pageSize)
	assert.Equal(t, "localhost:9000", d.client.EndpointURL().Host)
	assert.Equal(t, "http", d.client.EndpointURL().Scheme)
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(&store.Config{Provider: store.ProviderMinIO})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestDeleteObjects_BatchLimit(t *testing.T) {
	d, err := New(&store.Config{EndpointURL: "localhost:9000"})
	require.NoError(t, err)
	err = d.DeleteObjects(context.Background(), "b", make([]string, store.DeleteBatchSize+1))
	assert.True(t, errs.IsInvalidInput(err))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"no such key", miniogo.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, errs.KindNotFound},
		{"bare 404", miniogo.ErrorResponse{StatusCode: http.StatusNotFound}, errs.KindNotFound},
		{"access denied", miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.KindPermissionDenied},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.KindTimeout},
		{"server error", miniogo.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, errs.KindStoreFailed},
		{"wrapped", fmt.Errorf("list: %w", miniogo.ErrorResponse{Code: "NoSuchBucket"}), errs.KindNotFound},
		{"cancelled", context.Canceled, errs.KindTimeout},
		{"network", errors.New("connection refused"), errs.KindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapError(tt.err, "op").Kind)
		})
	}
}

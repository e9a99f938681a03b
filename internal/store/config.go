package store

import (
	"net/url"
	"strings"
)

// Provider identifies the storage backend driver.
type Provider string

const (
	ProviderAWS    Provider = "aws"
	ProviderMinIO  Provider = "minio"
	ProviderMemory Provider = "memory"
)

// Config holds everything a driver needs to connect. It is built once by
// the config loader and handed to the driver constructor; drivers never read
// credentials from anywhere else.
type Config struct {
	Provider Provider

	// EndpointURL is the full URL of an S3-compatible service, e.g.
	// "http://localhost:9000". Empty means the provider default.
	EndpointURL string

	// Region is required by AWS; MinIO accepts it when set.
	Region string

	// Profile selects a shared AWS config profile (aws provider only).
	Profile string

	AccessKey    string
	SecretKey    string
	SessionToken string

	// UsePathStyle forces bucket-in-path addressing, which most
	// S3-compatible services require.
	UsePathStyle bool
}

// HasStaticCredentials reports whether explicit keys were configured.
func (c *Config) HasStaticCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// EndpointHost returns host[:port] of EndpointURL and whether TLS is used.
// A bare host without scheme is treated as HTTPS.
func (c *Config) EndpointHost() (host string, secure bool, err error) {
	raw := c.EndpointURL
	if raw == "" {
		return "", true, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}
	return u.Host, u.Scheme == "https", nil
}

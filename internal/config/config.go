// Package config resolves s3ranger settings from, lowest precedence first:
// built-in defaults, an s3cmd .s3cfg file, the ~/.s3ranger.toml file,
// environment variables and command-line overrides.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/store"
)

// FileName is the application config file kept in the home directory.
const FileName = ".s3ranger.toml"

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "S3RANGER"

// viper keys
const (
	keyEndpointURL         = "endpoint_url"
	keyRegion              = "region_name"
	keyProfile             = "profile_name"
	keyProvider            = "provider"
	keyPathStyle           = "path_style"
	keyAccessKey           = "access_key"
	keySecretKey           = "secret_key"
	keySessionToken        = "session_token"
	keyListingMode         = "listing_mode"
	keyDownloadDir         = "download_dir"
	keyTransferConcurrency = "transfer_concurrency"
	keyFetchTimeout        = "fetch_timeout"
	keyLogLevel            = "log_level"
	keyLogFile             = "log_file"
	keyLogFormat           = "log_format"
)

// Config is the resolved application configuration.
type Config struct {
	Store store.Config

	ListingMode         string
	DownloadDir         string
	TransferConcurrency int
	FetchTimeout        time.Duration

	Log LogConfig

	// Sources lists the files that contributed, for diagnostics.
	Sources []string
}

// LogConfig selects where and how much to log.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Options controls where Load looks.
type Options struct {
	// ConfigFile overrides the default ~/.s3ranger.toml. It must exist.
	ConfigFile string
	// S3cfgPaths overrides the .s3cfg search path. Nil uses S3cfgPaths().
	S3cfgPaths []string
	// SkipS3cfg disables the .s3cfg layer.
	SkipS3cfg bool
}

// Overrides are command-line values. Empty fields leave the loaded value.
type Overrides struct {
	EndpointURL  string
	Region       string
	Profile      string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Provider     string
	ListingMode  string
	LogFile      string
	LogLevel     string
}

// DefaultPath returns ~/.s3ranger.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.KindLocalIO, "cannot resolve home directory", err)
	}
	return filepath.Join(home, FileName), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyProvider, string(store.ProviderAWS))
	v.SetDefault(keyListingMode, "lazy")
	v.SetDefault(keyDownloadDir, "~/Downloads")
	v.SetDefault(keyTransferConcurrency, 4)
	v.SetDefault(keyFetchTimeout, "2m")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "json")
	v.SetDefault(keyPathStyle, false)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// The standard AWS variables take part as well. Explicit binding
	// replaces the automatic S3RANGER_ name, so it is listed first.
	_ = v.BindEnv(keyAccessKey, EnvPrefix+"_ACCESS_KEY", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv(keySecretKey, EnvPrefix+"_SECRET_KEY", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv(keySessionToken, EnvPrefix+"_SESSION_TOKEN", "AWS_SESSION_TOKEN")
	_ = v.BindEnv(keyEndpointURL, EnvPrefix+"_ENDPOINT_URL", "AWS_ENDPOINT_URL_S3", "AWS_ENDPOINT_URL")
}

// Load resolves the configuration. Missing default files are not an error.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	var sources []string

	if !opts.SkipS3cfg {
		paths := opts.S3cfgPaths
		if paths == nil {
			paths = S3cfgPaths()
		}
		s3c, path, err := LoadS3cfg(paths)
		if err != nil {
			return nil, err
		}
		if s3c != nil {
			applyS3cfg(v, s3c)
			sources = append(sources, path)
		}
	}

	path := opts.ConfigFile
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if explicit || !missing {
			return nil, errs.Wrap(errs.KindInvalidInput, "failed to read config file "+path, err)
		}
	} else {
		sources = append(sources, path)
	}

	bindEnv(v)

	cfg := &Config{
		Store: store.Config{
			Provider:     store.Provider(strings.ToLower(v.GetString(keyProvider))),
			EndpointURL:  v.GetString(keyEndpointURL),
			Region:       v.GetString(keyRegion),
			Profile:      v.GetString(keyProfile),
			AccessKey:    v.GetString(keyAccessKey),
			SecretKey:    v.GetString(keySecretKey),
			SessionToken: v.GetString(keySessionToken),
			UsePathStyle: v.GetBool(keyPathStyle),
		},
		ListingMode:         strings.ToLower(v.GetString(keyListingMode)),
		DownloadDir:         v.GetString(keyDownloadDir),
		TransferConcurrency: v.GetInt(keyTransferConcurrency),
		FetchTimeout:        v.GetDuration(keyFetchTimeout),
		Log: LogConfig{
			Level:  v.GetString(keyLogLevel),
			Format: v.GetString(keyLogFormat),
			File:   v.GetString(keyLogFile),
		},
		Sources: sources,
	}
	return cfg, nil
}

// applyS3cfg installs .s3cfg values as defaults so every other layer wins.
func applyS3cfg(v *viper.Viper, c *S3cfg) {
	if c.AccessKey != "" {
		v.SetDefault(keyAccessKey, c.AccessKey)
	}
	if c.SecretKey != "" {
		v.SetDefault(keySecretKey, c.SecretKey)
	}
	if ep := c.EndpointURL(); ep != "" {
		v.SetDefault(keyEndpointURL, ep)
		// s3cmd-style services are addressed by path
		v.SetDefault(keyPathStyle, true)
	}
	if c.Region != "" {
		v.SetDefault(keyRegion, c.Region)
	}
}

// Apply overlays command-line values.
func (c *Config) Apply(o Overrides) {
	set := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	set(&c.Store.EndpointURL, o.EndpointURL)
	set(&c.Store.Region, o.Region)
	set(&c.Store.Profile, o.Profile)
	set(&c.Store.AccessKey, o.AccessKey)
	set(&c.Store.SecretKey, o.SecretKey)
	set(&c.Store.SessionToken, o.SessionToken)
	set(&c.ListingMode, strings.ToLower(o.ListingMode))
	set(&c.Log.File, o.LogFile)
	set(&c.Log.Level, o.LogLevel)
	if o.Provider != "" {
		c.Store.Provider = store.Provider(strings.ToLower(o.Provider))
	}

	if o.EndpointURL != "" && c.Store.Provider == store.ProviderAWS {
		// custom endpoints are almost always S3-compatible services
		c.Store.UsePathStyle = true
	}
}

// Validate checks the resolved values.
func (c *Config) Validate() error {
	switch c.Store.Provider {
	case store.ProviderAWS, store.ProviderMemory:
	case store.ProviderMinIO:
		if c.Store.EndpointURL == "" {
			return errs.New(errs.KindInvalidInput, "the minio provider requires an endpoint URL")
		}
		if !c.Store.HasStaticCredentials() {
			return errs.New(errs.KindInvalidInput, "the minio provider requires an access key and a secret key")
		}
	default:
		return errs.Newf(errs.KindInvalidInput, "unknown provider %q (want aws, minio or memory)", c.Store.Provider)
	}

	switch c.ListingMode {
	case "lazy", "eager":
	default:
		return errs.Newf(errs.KindInvalidInput, "unknown listing mode %q (want lazy or eager)", c.ListingMode)
	}

	if c.TransferConcurrency < 1 {
		return errs.Newf(errs.KindInvalidInput, "transfer_concurrency must be positive, got %d", c.TransferConcurrency)
	}
	if c.FetchTimeout <= 0 {
		return errs.Newf(errs.KindInvalidInput, "fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if (c.Store.AccessKey == "") != (c.Store.SecretKey == "") {
		return errs.New(errs.KindInvalidInput, "access key and secret key must be given together")
	}
	return nil
}

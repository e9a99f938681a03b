package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"github.com/slmtnm/s3ranger/internal/errs"
)

// S3cfg holds the settings read from an s3cmd-compatible .s3cfg file.
type S3cfg struct {
	AccessKey string
	SecretKey string
	HostBase  string
	UseHTTPS  bool
	Region    string
}

// S3cfgPaths returns the locations searched for .s3cfg, in order.
func S3cfgPaths() []string {
	paths := []string{".s3cfg"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".s3cfg"))
	}
	return append(paths, "/etc/s3cfg")
}

// LoadS3cfg reads the first existing file among paths. It returns a nil
// config and an empty path when none exists.
func LoadS3cfg(paths []string) (*S3cfg, string, error) {
	var path string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		return nil, "", nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, path, errs.Wrap(errs.KindInvalidInput, "failed to load "+path, err)
	}

	section := file.Section("default")
	cfg := &S3cfg{
		AccessKey: section.Key("access_key").String(),
		SecretKey: section.Key("secret_key").String(),
		HostBase:  section.Key("host_base").String(),
		UseHTTPS:  section.Key("use_https").MustBool(true),
		Region:    section.Key("bucket_location").String(),
	}
	return cfg, path, nil
}

// EndpointURL returns the endpoint described by host_base and use_https, or
// "" for the default AWS endpoint.
func (c *S3cfg) EndpointURL() string {
	if c.HostBase == "" || c.HostBase == "s3.amazonaws.com" {
		return ""
	}
	protocol := "https"
	if !c.UseHTTPS {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s", protocol, c.HostBase)
}

// SaveS3cfg writes c into the [default] section of path in s3cmd format.
// Other sections and keys of an existing file are kept. The file is only
// ever readable by its owner.
func SaveS3cfg(c *S3cfg, path string) error {
	file, err := openS3cfg(path)
	if err != nil {
		return err
	}
	section := file.Section("default")

	section.Key("access_key").SetValue(c.AccessKey)
	section.Key("secret_key").SetValue(c.SecretKey)
	if c.HostBase != "" {
		section.Key("host_base").SetValue(c.HostBase)
		section.Key("host_bucket").SetValue(c.HostBase + "/%(bucket)s")
	} else {
		section.DeleteKey("host_base")
		section.DeleteKey("host_bucket")
	}
	if c.UseHTTPS {
		section.Key("use_https").SetValue("True")
	} else {
		section.Key("use_https").SetValue("False")
	}
	if c.Region != "" {
		section.Key("bucket_location").SetValue(c.Region)
	} else {
		section.DeleteKey("bucket_location")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return errs.Wrap(errs.KindLocalIO, "failed to save "+path, err)
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return errs.Wrap(errs.KindLocalIO, "failed to restrict permissions on "+path, err)
	}
	_, err = file.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errs.Wrap(errs.KindLocalIO, "failed to save "+path, err)
	}
	return nil
}

// openS3cfg parses path, or starts an empty file when it does not exist.
func openS3cfg(path string) (*ini.File, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ini.Empty(), nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "failed to load "+path, err)
	}
	return file, nil
}

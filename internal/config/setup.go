package config

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/store"
)

// SetupResult reports what Configure wrote.
type SetupResult struct {
	ConfigFile string
	S3cfgFile  string // empty when no credentials were entered
}

type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", errs.Wrap(errs.KindLocalIO, "failed to read input", err)
		}
		return "", errs.New(errs.KindInvalidInput, "setup aborted: no more input")
	}
	answer := strings.TrimSpace(p.scanner.Text())
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Configure runs the interactive setup, writing settings to configPath and,
// when keys are entered, credentials to s3cfgPath.
func Configure(in io.Reader, out io.Writer, configPath, s3cfgPath string) (*SetupResult, error) {
	p := &prompter{scanner: bufio.NewScanner(in), out: out}

	fmt.Fprintln(out, "s3ranger setup")
	fmt.Fprintln(out, "==============")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Common configurations:")
	fmt.Fprintln(out, "  AWS S3:          provider aws, leave the endpoint empty")
	fmt.Fprintln(out, "  MinIO local:     provider minio, endpoint http://localhost:9000")
	fmt.Fprintln(out, "  Other S3 clones: provider aws with the service endpoint")
	fmt.Fprintln(out)

	provider, err := p.ask("Provider (aws, minio)", string(store.ProviderAWS))
	if err != nil {
		return nil, err
	}
	provider = strings.ToLower(provider)
	if provider != string(store.ProviderAWS) && provider != string(store.ProviderMinIO) {
		return nil, errs.Newf(errs.KindInvalidInput, "unknown provider %q", provider)
	}

	endpoint, err := p.ask("Endpoint URL (empty for AWS)", "")
	if err != nil {
		return nil, err
	}
	var endpointURL *url.URL
	if endpoint != "" {
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		endpointURL, err = url.Parse(endpoint)
		if err != nil || endpointURL.Host == "" {
			return nil, errs.Newf(errs.KindInvalidInput, "invalid endpoint URL %q", endpoint)
		}
	}
	if provider == string(store.ProviderMinIO) && endpointURL == nil {
		return nil, errs.New(errs.KindInvalidInput, "the minio provider requires an endpoint URL")
	}

	region, err := p.ask("Region", "us-east-1")
	if err != nil {
		return nil, err
	}
	profile, err := p.ask("AWS profile (empty for default)", "")
	if err != nil {
		return nil, err
	}
	mode, err := p.ask("Listing mode (lazy, eager)", "lazy")
	if err != nil {
		return nil, err
	}
	mode = strings.ToLower(mode)
	if mode != "lazy" && mode != "eager" {
		return nil, errs.Newf(errs.KindInvalidInput, "unknown listing mode %q", mode)
	}
	downloadDir, err := p.ask("Download directory", "~/Downloads")
	if err != nil {
		return nil, err
	}
	accessKey, err := p.ask("Access Key ID (empty to use the AWS credential chain)", "")
	if err != nil {
		return nil, err
	}
	var secretKey string
	if accessKey != "" {
		secretKey, err = p.ask("Secret Access Key", "")
		if err != nil {
			return nil, err
		}
		if secretKey == "" {
			return nil, errs.New(errs.KindInvalidInput, "secret key cannot be empty")
		}
	} else if provider == string(store.ProviderMinIO) {
		return nil, errs.New(errs.KindInvalidInput, "the minio provider requires an access key")
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set(keyProvider, provider)
	if endpointURL != nil {
		v.Set(keyEndpointURL, endpointURL.String())
	}
	v.Set(keyRegion, region)
	if profile != "" {
		v.Set(keyProfile, profile)
	}
	v.Set(keyListingMode, mode)
	v.Set(keyDownloadDir, downloadDir)
	if err := v.WriteConfigAs(configPath); err != nil {
		return nil, errs.Wrap(errs.KindLocalIO, "failed to write "+configPath, err)
	}

	res := &SetupResult{ConfigFile: configPath}
	if accessKey != "" {
		s3c := &S3cfg{AccessKey: accessKey, SecretKey: secretKey, Region: region, UseHTTPS: true}
		if endpointURL != nil {
			s3c.HostBase = endpointURL.Host
			s3c.UseHTTPS = endpointURL.Scheme == "https"
		}
		if err := SaveS3cfg(s3c, s3cfgPath); err != nil {
			return nil, err
		}
		res.S3cfgFile = s3cfgPath
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to: %s\n", res.ConfigFile)
	if res.S3cfgFile != "" {
		fmt.Fprintf(out, "Credentials saved to:   %s\n", res.S3cfgFile)
	}
	return res, nil
}

// Package configloader loads an optional YAML overlay onto config.Default().
package configloader

import (
	"fmt"
	"os"
	"time"

	"github.com/gurre/xdgapp-deploy/state/config"
	"gopkg.in/yaml.v3"
)

// rawOptions mirrors the subset of config.Options an operator may override.
type rawOptions struct {
	SystemDir            string `yaml:"system_dir"`
	UserSubdir           string `yaml:"user_subdir"`
	TriggerDir           string `yaml:"trigger_dir"`
	BinDir               string `yaml:"bin_dir"`
	HelperPath           string `yaml:"helper_path"`
	LauncherName         string `yaml:"launcher_name"`
	S3EndpointOverride   string `yaml:"s3_endpoint_override"`
	S3StaticAccessKey    string `yaml:"s3_static_access_key"`
	S3StaticSecretKey    string `yaml:"s3_static_secret_key"`
	TriggerTimeout       *int   `yaml:"trigger_timeout_seconds"`
	PullRetryBaseDelay   *int   `yaml:"pull_retry_base_delay_seconds"`
	PullRetryMaxDelay    *int   `yaml:"pull_retry_max_delay_seconds"`
	PullMaxRetries       *int   `yaml:"pull_max_retries"`
	ExportMaxDepth       *int   `yaml:"export_max_depth"`
	UseFIPSEndpoint      *bool  `yaml:"use_fips_endpoint"`
}

// Load loads an Options overlay from path, returning config.Default() if the
// file does not exist. Missing or empty fields retain their default values.
//
//	opts, err := configloader.Load("/etc/xdg-app/config.yml")
func Load(path string) (config.Options, error) {
	opts := config.Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return config.Options{}, fmt.Errorf("configloader: %w", err)
	}

	var raw rawOptions
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return config.Options{}, fmt.Errorf("configloader: parse %s: %w", path, err)
	}

	if raw.SystemDir != "" {
		opts.SystemDir = raw.SystemDir
	}
	if raw.UserSubdir != "" {
		opts.UserSubdir = raw.UserSubdir
	}
	if raw.TriggerDir != "" {
		opts.TriggerDir = raw.TriggerDir
	}
	if raw.BinDir != "" {
		opts.BinDir = raw.BinDir
	}
	if raw.HelperPath != "" {
		opts.HelperPath = raw.HelperPath
	}
	if raw.LauncherName != "" {
		opts.LauncherName = raw.LauncherName
	}
	if raw.S3EndpointOverride != "" {
		opts.S3EndpointOverride = raw.S3EndpointOverride
	}
	if raw.S3StaticAccessKey != "" {
		opts.S3StaticAccessKey = raw.S3StaticAccessKey
	}
	if raw.S3StaticSecretKey != "" {
		opts.S3StaticSecretKey = raw.S3StaticSecretKey
	}
	if raw.TriggerTimeout != nil {
		opts.TriggerTimeout = time.Duration(*raw.TriggerTimeout) * time.Second
	}
	if raw.PullRetryBaseDelay != nil {
		opts.PullRetryBaseDelay = time.Duration(*raw.PullRetryBaseDelay) * time.Second
	}
	if raw.PullRetryMaxDelay != nil {
		opts.PullRetryMaxDelay = time.Duration(*raw.PullRetryMaxDelay) * time.Second
	}
	if raw.PullMaxRetries != nil {
		opts.PullMaxRetries = *raw.PullMaxRetries
	}
	if raw.ExportMaxDepth != nil {
		opts.ExportMaxDepth = *raw.ExportMaxDepth
	}
	if raw.UseFIPSEndpoint != nil {
		opts.UseFIPSEndpoint = *raw.UseFIPSEndpoint
	}

	return opts, nil
}

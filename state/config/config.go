// Package config defines the deployment manager's compile-time constants
// and their overridable defaults. These are pure data types with no I/O;
// loading a YAML overlay is handled by adaptor/configloader.
package config

import "time"

// Options holds the compile-time constants from spec §6, overridable at
// runtime through an optional YAML file as an operational convenience.
// Fields are aligned from largest to smallest for memory efficiency.
type Options struct {
	// SystemDir is the fixed system installation root (XDG_APP_SYSTEMDIR).
	SystemDir string
	// UserSubdir names the per-user installation root under the user's data directory.
	UserSubdir string
	// TriggerDir holds the *.trigger files run_triggers enumerates (XDG_APP_TRIGGERDIR).
	TriggerDir string
	// BinDir contains the launcher binary, used when synthesizing Exec= lines (XDG_APP_BINDIR).
	BinDir string
	// HelperPath is the trigger helper binary invoked by run_triggers (HELPER).
	HelperPath string
	// LauncherName is the command synthesized Exec= lines invoke, found under BinDir.
	LauncherName string
	// S3EndpointOverride overrides the S3 endpoint used by the S3 remote backend.
	S3EndpointOverride string
	// S3StaticAccessKey and S3StaticSecretKey, if both set, pin the S3 remote
	// to a static credential pair instead of the SDK's default chain — for
	// origins reachable only with credentials that don't come from an
	// environment/instance-role/profile the default chain would find.
	S3StaticAccessKey string
	S3StaticSecretKey string

	// TriggerTimeout bounds how long a single trigger is allowed to run.
	TriggerTimeout time.Duration
	// PullRetryBaseDelay is the base delay for the HTTPS remote's backoff.
	PullRetryBaseDelay time.Duration
	// PullRetryMaxDelay caps the HTTPS remote's backoff delay.
	PullRetryMaxDelay time.Duration

	// PullMaxRetries bounds the HTTPS remote's retry attempts.
	PullMaxRetries int
	// ExportMaxDepth caps export-tree recursion as a symlink-loop backstop.
	ExportMaxDepth int

	// UseFIPSEndpoint selects the S3 FIPS endpoint when no explicit override is set.
	UseFIPSEndpoint bool
}

// Default returns the compile-time constants spec §6 names.
//
//	opts := config.Default()
//	opts.SystemDir = "/opt/xdg-app"
func Default() Options {
	return Options{
		SystemDir:          "/var/lib/xdg-app",
		UserSubdir:         "xdg-app",
		TriggerDir:         "/usr/share/xdg-app/triggers",
		BinDir:             "/usr/bin",
		HelperPath:         "/usr/lib/xdg-app/xdg-app-helper",
		LauncherName:       "xdg-app",
		TriggerTimeout:     30 * time.Second,
		PullRetryBaseDelay: 2 * time.Second,
		PullRetryMaxDelay:  30 * time.Second,
		PullMaxRetries:     3,
		ExportMaxDepth:     64,
	}
}

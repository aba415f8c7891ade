// Package manager wires configuration, adaptors, and orchestration together
// into the deployment manager the CLI entrypoint drives. It holds no
// business logic of its own; every operation delegates to a constructed
// engine.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gurre/xdgapp-deploy/adaptor/configloader"
	"github.com/gurre/xdgapp-deploy/adaptor/filesystem"
	"github.com/gurre/xdgapp-deploy/adaptor/objectrepo"
	"github.com/gurre/xdgapp-deploy/adaptor/trigger"
	"github.com/gurre/xdgapp-deploy/logic/ref"
	"github.com/gurre/xdgapp-deploy/orchestration/active"
	deployorch "github.com/gurre/xdgapp-deploy/orchestration/deploy"
	"github.com/gurre/xdgapp-deploy/orchestration/enumerate"
	"github.com/gurre/xdgapp-deploy/orchestration/export"
	"github.com/gurre/xdgapp-deploy/orchestration/installation"
	pullorch "github.com/gurre/xdgapp-deploy/orchestration/pull"
	undeployorch "github.com/gurre/xdgapp-deploy/orchestration/undeploy"
	"github.com/gurre/xdgapp-deploy/state/config"
)

// Manager is the fully-wired deployment manager: one per process, shared
// across every CLI invocation's subcommand.
type Manager struct {
	opts     config.Options
	logger   *slog.Logger
	puller   *pullorch.Puller
	deploy   *deployorch.Engine
	undeploy *undeployorch.Engine
}

// New loads configPath (falling back to config.Default() if absent), builds
// an S3 client from the default AWS configuration (none if that
// configuration fails to load), and wires every orchestration engine on top
// of it.
func New(ctx context.Context, configPath string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	opts, err := configloader.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("manager: load config: %w", err)
	}

	s3Client := buildS3Client(ctx, opts, logger)

	fs := filesystem.NewOperator()
	activeMgr := active.NewManager(fs)
	exportTransformer := export.NewTransformer(fs, trigger.NewRunner(logger), opts, logger)
	remoteDeps := objectrepo.RemoteDeps{
		S3Client:           s3Client,
		Logger:             logger,
		PullMaxRetries:     opts.PullMaxRetries,
		PullRetryBaseDelay: opts.PullRetryBaseDelay,
		PullRetryMaxDelay:  opts.PullRetryMaxDelay,
	}
	puller := pullorch.NewPuller(remoteDeps)

	return &Manager{
		opts:     opts,
		logger:   logger,
		puller:   puller,
		deploy:   deployorch.NewEngine(activeMgr, exportTransformer, puller, opts, logger),
		undeploy: undeployorch.NewEngine(fs, activeMgr, exportTransformer, opts, logger),
	}, nil
}

// buildS3Client loads the default AWS configuration for the S3 remote
// backend; credentials are not resolved until a request is made. A load
// failure here is non-fatal: s3:// origins simply become unusable, which
// ParseOrigin reports clearly when one is actually requested.
func buildS3Client(ctx context.Context, opts config.Options, logger *slog.Logger) *s3.Client {
	var awsOpts []func(*awsconfig.LoadOptions) error
	if opts.S3StaticAccessKey != "" && opts.S3StaticSecretKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.S3StaticAccessKey, opts.S3StaticSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		logger.Warn("no AWS credentials resolved, s3:// origins will be unusable", "error", err)
		return nil
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.S3EndpointOverride != "" {
			o.BaseEndpoint = aws.String(opts.S3EndpointOverride)
		} else if opts.UseFIPSEndpoint {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://s3-fips.%s.amazonaws.com", o.Region))
		}
	})
}

// resolveInstallation picks the system or per-user Installation singleton.
func (m *Manager) resolveInstallation(user bool) (*installation.Installation, error) {
	inst, err := installation.Get(user, m.opts, m.logger)
	if err != nil {
		return nil, fmt.Errorf("manager: resolve installation: %w", err)
	}
	return inst, nil
}

// Pull fetches checksum's object graph from remote and records it as r's
// local tip.
func (m *Manager) Pull(ctx context.Context, user bool, r ref.Ref, remote, checksum string) error {
	inst, err := m.resolveInstallation(user)
	if err != nil {
		return err
	}
	return m.puller.Pull(ctx, inst, r, remote, checksum, nil)
}

// Deploy resolves checksum (or r's local tip if empty) and publishes it.
func (m *Manager) Deploy(ctx context.Context, user bool, r ref.Ref, checksum string) (string, error) {
	inst, err := m.resolveInstallation(user)
	if err != nil {
		return "", err
	}
	return m.deploy.Deploy(ctx, inst, r, checksum)
}

// Undeploy removes r's checkout at checksum.
func (m *Manager) Undeploy(ctx context.Context, user bool, r ref.Ref, checksum string, forceRemove bool) error {
	inst, err := m.resolveInstallation(user)
	if err != nil {
		return err
	}
	return m.undeploy.Undeploy(ctx, inst, r, checksum, forceRemove)
}

// Prune garbage-collects unreachable objects in user's (or the system's) store.
func (m *Manager) Prune(ctx context.Context, user bool) (total, pruned int, freedBytes int64, err error) {
	inst, err := m.resolveInstallation(user)
	if err != nil {
		return 0, 0, 0, err
	}
	return m.undeploy.Prune(ctx, inst)
}

// CleanupRemoved deletes unlocked entries under .removed/.
func (m *Manager) CleanupRemoved(user bool) error {
	inst, err := m.resolveInstallation(user)
	if err != nil {
		return err
	}
	return m.undeploy.CleanupRemoved(inst)
}

// ListDeployed returns every checksum deployed under r.
func (m *Manager) ListDeployed(user bool, r ref.Ref) ([]string, error) {
	inst, err := m.resolveInstallation(user)
	if err != nil {
		return nil, err
	}
	return enumerate.ListDeployed(inst.Layout(), r)
}

// CollectDeployedRefs returns every ref name of the given type with an
// active deployment at branch/arch, optionally filtered by namePrefix.
func (m *Manager) CollectDeployedRefs(user bool, t ref.Type, namePrefix, branch, arch string) ([]string, error) {
	inst, err := m.resolveInstallation(user)
	if err != nil {
		return nil, err
	}
	var sink []string
	if err := enumerate.CollectDeployedRefs(inst.Layout(), t, namePrefix, branch, arch, &sink); err != nil {
		return nil, err
	}
	return sink, nil
}

// GetIfDeployed returns the checkout path for r at checksum (or active, if
// checksum is empty).
func (m *Manager) GetIfDeployed(user bool, r ref.Ref, checksum string) (string, bool, error) {
	inst, err := m.resolveInstallation(user)
	if err != nil {
		return "", false, err
	}
	return enumerate.GetIfDeployed(inst.Layout(), r, checksum)
}

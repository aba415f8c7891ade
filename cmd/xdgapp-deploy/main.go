// Command xdgapp-deploy is the CLI entrypoint for the deployment directory
// manager: pull, deploy, undeploy, prune, and enumeration subcommands
// against a system or per-user installation root.
//
// Usage:
//
//	xdgapp-deploy pull --ref=app/org.example.Hello/x86_64/stable --remote=https://example.com/repo --checksum=...
//	xdgapp-deploy deploy --ref=app/org.example.Hello/x86_64/stable [--checksum=...]
//	xdgapp-deploy undeploy --ref=app/org.example.Hello/x86_64/stable --checksum=... [--force]
//	xdgapp-deploy prune
//	xdgapp-deploy list --ref=app/org.example.Hello/x86_64/stable
//	xdgapp-deploy refs --type=app [--name-prefix=org.example] --branch=stable --arch=x86_64
//
// Every subcommand accepts --user to operate on the per-user installation
// instead of the system one, --config to point at a YAML config overlay
// (default /etc/xdg-app/config.yml), and --log-dir to write rotated JSON
// logs instead of to stderr. pull, deploy, and undeploy print the JSON
// outcome payload described by logic/outcome; prune prints its counts as a
// JSON object on success; list and refs print one result per line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/gurre/xdgapp-deploy/adaptor/logfile"
	"github.com/gurre/xdgapp-deploy/entrypoint/manager"
	"github.com/gurre/xdgapp-deploy/logic/outcome"
	"github.com/gurre/xdgapp-deploy/logic/ref"
)

const defaultConfigPath = "/etc/xdg-app/config.yml"

// logRotationMaxBytes and logRotationMaxFiles bound --log-dir's on-disk
// footprint; the current file plus 8 rotated copies at 64MiB each caps it at
// about 576MiB.
const (
	logRotationMaxBytes = 64 << 20
	logRotationMaxFiles = 8
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	sub := os.Args[1]
	args := os.Args[2:]

	var err error
	switch sub {
	case "pull":
		err = runPull(ctx, args)
	case "deploy":
		err = runDeploy(ctx, args)
	case "undeploy":
		err = runUndeploy(ctx, args)
	case "prune":
		err = runPrune(ctx, args)
	case "list":
		err = runList(ctx, args)
	case "refs":
		err = runRefs(ctx, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "xdgapp-deploy: %s\n", err)
		os.Exit(1)
	}
}

// buildLogger returns slog.Default() when logDir is empty, or a logger
// writing JSON lines to a size-rotated file under logDir otherwise. The
// returned closer must be called before the process exits so the last log
// file is flushed.
func buildLogger(logDir string) (logger *slog.Logger, closer func()) {
	if logDir == "" {
		return slog.Default(), func() {}
	}
	w := logfile.NewRotatingWriter(logDir, "xdgapp-deploy.log", logRotationMaxBytes, logRotationMaxFiles)
	if err := w.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "xdgapp-deploy: %s, logging to stderr instead\n", err)
		return slog.Default(), func() {}
	}
	return slog.New(slog.NewJSONHandler(w, nil)), func() { _ = w.Close() }
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: xdgapp-deploy <pull|deploy|undeploy|prune|list|refs> [flags]\n")
}

// commonFlags adds the --user, --config, and --log-dir flags every
// subcommand shares.
func commonFlags(fs *flag.FlagSet) (user *bool, configPath, logDir *string) {
	user = fs.Bool("user", false, "operate on the per-user installation")
	configPath = fs.String("config", defaultConfigPath, "path to a YAML config overlay")
	logDir = fs.String("log-dir", "", "directory for rotated JSON logs (default: stderr)")
	return user, configPath, logDir
}

func parseRef(s string) (ref.Ref, error) {
	if s == "" {
		return ref.Ref{}, fmt.Errorf("--ref is required")
	}
	return ref.Parse(s)
}

func runPull(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	user, configPath, logDir := commonFlags(fs)
	refStr := fs.String("ref", "", "ref to pull, e.g. app/org.example.Hello/x86_64/stable")
	remote := fs.String("remote", "", "origin URL (s3://, https://, or file://)")
	checksum := fs.String("checksum", "", "commit checksum to fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := parseRef(*refStr)
	if err != nil {
		return err
	}
	if *remote == "" {
		return fmt.Errorf("--remote is required")
	}
	if err := ref.ValidateChecksum(*checksum); err != nil {
		return err
	}

	logger, closeLog := buildLogger(*logDir)
	defer closeLog()
	m, err := manager.New(ctx, *configPath, logger)
	if err != nil {
		return err
	}
	err = m.Pull(ctx, *user, r, *remote, *checksum)
	return printOutcome(outcome.BuildFromError(r, *checksum, err))
}

func runDeploy(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	user, configPath, logDir := commonFlags(fs)
	refStr := fs.String("ref", "", "ref to deploy, e.g. app/org.example.Hello/x86_64/stable")
	checksum := fs.String("checksum", "", "commit checksum to deploy; defaults to the ref's local tip")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := parseRef(*refStr)
	if err != nil {
		return err
	}
	if *checksum != "" {
		if err := ref.ValidateChecksum(*checksum); err != nil {
			return err
		}
	}

	logger, closeLog := buildLogger(*logDir)
	defer closeLog()
	m, err := manager.New(ctx, *configPath, logger)
	if err != nil {
		return err
	}
	deployed, err := m.Deploy(ctx, *user, r, *checksum)
	if err != nil {
		return printOutcome(outcome.BuildFromError(r, *checksum, err))
	}
	return printOutcome(outcome.Build(r, deployed))
}

func runUndeploy(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("undeploy", flag.ExitOnError)
	user, configPath, logDir := commonFlags(fs)
	refStr := fs.String("ref", "", "ref to undeploy")
	checksum := fs.String("checksum", "", "commit checksum to undeploy")
	force := fs.Bool("force", false, "delete immediately regardless of liveness lock")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := parseRef(*refStr)
	if err != nil {
		return err
	}
	if err := ref.ValidateChecksum(*checksum); err != nil {
		return err
	}

	logger, closeLog := buildLogger(*logDir)
	defer closeLog()
	m, err := manager.New(ctx, *configPath, logger)
	if err != nil {
		return err
	}
	err = m.Undeploy(ctx, *user, r, *checksum, *force)
	return printOutcome(outcome.BuildFromError(r, *checksum, err))
}

func runPrune(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	user, configPath, logDir := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, closeLog := buildLogger(*logDir)
	defer closeLog()
	m, err := manager.New(ctx, *configPath, logger)
	if err != nil {
		return err
	}
	total, pruned, freed, err := m.Prune(ctx, *user)
	if err != nil {
		return printOutcome(outcome.BuildFromError(ref.Ref{}, "", err))
	}
	fmt.Printf("{\"kind\":\"OK\",\"total\":%d,\"pruned\":%d,\"freedBytes\":%d}\n", total, pruned, freed)
	return nil
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	user, configPath, logDir := commonFlags(fs)
	refStr := fs.String("ref", "", "ref to list deployed checksums for")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := parseRef(*refStr)
	if err != nil {
		return err
	}

	logger, closeLog := buildLogger(*logDir)
	defer closeLog()
	m, err := manager.New(ctx, *configPath, logger)
	if err != nil {
		return err
	}
	checksums, err := m.ListDeployed(*user, r)
	if err != nil {
		return printOutcome(outcome.BuildFromError(r, "", err))
	}
	for _, c := range checksums {
		fmt.Println(c)
	}
	return nil
}

func runRefs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refs", flag.ExitOnError)
	user, configPath, logDir := commonFlags(fs)
	refType := fs.String("type", "app", "ref type: app or runtime")
	namePrefix := fs.String("name-prefix", "", "only names with this prefix")
	branch := fs.String("branch", "", "branch to check for an active deployment")
	arch := fs.String("arch", "", "architecture to check for an active deployment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *branch == "" || *arch == "" {
		return fmt.Errorf("--branch and --arch are required")
	}

	logger, closeLog := buildLogger(*logDir)
	defer closeLog()
	m, err := manager.New(ctx, *configPath, logger)
	if err != nil {
		return err
	}
	names, err := m.CollectDeployedRefs(*user, ref.Type(*refType), *namePrefix, *branch, *arch)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func printOutcome(o outcome.Outcome) error {
	data, err := o.JSON()
	if err != nil {
		return err
	}
	fmt.Println(data)
	if o.Kind != outcome.OK {
		return fmt.Errorf("%s", o.Message)
	}
	return nil
}

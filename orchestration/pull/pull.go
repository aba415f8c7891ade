// Package pull is a thin pass-through to the object repository: resolve a
// remote backend from an origin URL, fetch a commit's object graph, and
// record it as the ref's local tip.
package pull

import (
	"context"
	"fmt"

	"github.com/gurre/xdgapp-deploy/adaptor/objectrepo"
	"github.com/gurre/xdgapp-deploy/logic/ref"
	"github.com/gurre/xdgapp-deploy/orchestration/installation"
)

// Puller fetches commits from remotes named by origin-file URLs.
type Puller struct {
	deps objectrepo.RemoteDeps
}

// NewPuller returns a Puller that builds remote backends from deps.
func NewPuller(deps objectrepo.RemoteDeps) *Puller {
	return &Puller{deps: deps}
}

// Pull fetches checksum's object graph from remote into inst's repository
// and records it as r's local tip. Every error is wrapped with the fixed
// "While pulling <ref> from remote <remote>: " prefix.
func (p *Puller) Pull(ctx context.Context, inst *installation.Installation, r ref.Ref, remote, checksum string, progress func(string)) error {
	repo, err := inst.EnsureRepo()
	if err != nil {
		return fmt.Errorf("While pulling %s from remote %s: %w", r, remote, err)
	}

	backend, err := objectrepo.ParseOrigin(remote, p.deps)
	if err != nil {
		return fmt.Errorf("While pulling %s from remote %s: %w", r, remote, err)
	}

	if err := backend.Fetch(ctx, repo, checksum, progress); err != nil {
		return fmt.Errorf("While pulling %s from remote %s: %w", r, remote, err)
	}

	if err := repo.SetRefTip(r.String(), checksum); err != nil {
		return fmt.Errorf("While pulling %s from remote %s: %w", r, remote, err)
	}
	return nil
}

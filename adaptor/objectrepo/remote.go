package objectrepo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// RemoteDeps bundles the adaptors ParseOrigin needs to construct whichever
// backend an origin URL names. S3Client may be nil if S3 origins are unused.
type RemoteDeps struct {
	S3Client           *s3.Client
	Logger             *slog.Logger
	PullMaxRetries     int
	PullRetryBaseDelay time.Duration
	PullRetryMaxDelay  time.Duration
}

// Remote fetches the objects reachable from a commit checksum into a
// DiskRepo, skipping objects already present locally. Dispatch on the
// origin file's URL scheme picks one of the three concrete backends.
type Remote interface {
	Fetch(ctx context.Context, repo *DiskRepo, checksum string, progress func(string)) error
}

// ParseOrigin parses an origin-file line ("{scheme}://{location}") into the
// matching remote backend, or an error if the scheme is not one of
// s3/https/file.
func ParseOrigin(origin string, deps RemoteDeps) (Remote, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("objectrepo: parse origin %q: %w", origin, err)
	}

	switch u.Scheme {
	case "s3":
		if deps.S3Client == nil {
			return nil, fmt.Errorf("objectrepo: origin %q: no S3 client configured", origin)
		}
		bucket := u.Host
		prefix := trimLeadingSlash(u.Path)
		return NewS3Remote(deps.S3Client, bucket, prefix, deps.Logger), nil
	case "https":
		base := "https://" + u.Host + u.Path
		return NewHTTPSRemote(base, deps.Logger, deps.PullMaxRetries, deps.PullRetryBaseDelay, deps.PullRetryMaxDelay), nil
	case "file":
		return NewFileRemote(u.Path, deps.Logger), nil
	default:
		return nil, fmt.Errorf("objectrepo: origin %q: unsupported scheme %q", origin, u.Scheme)
	}
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

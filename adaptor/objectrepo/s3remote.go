package objectrepo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Remote fetches loose objects one at a time from an S3 bucket/prefix,
// mirroring the on-disk loose-object layout under {prefix}/objects/....
type S3Remote struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Remote constructs an S3-backed remote.
func NewS3Remote(client *s3.Client, bucket, prefix string, logger *slog.Logger) *S3Remote {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Remote{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Fetch walks the object graph reachable from checksum (a commit), fetching
// each missing object with a GetObject call.
func (s *S3Remote) Fetch(ctx context.Context, repo *DiskRepo, checksum string, progress func(string)) error {
	return s.fetchCommit(ctx, repo, checksum, progress)
}

func (s *S3Remote) key(checksum string) string {
	return fmt.Sprintf("%s/objects/%s/%s", s.prefix, checksum[:2], checksum[2:])
}

func (s *S3Remote) fetchObject(ctx context.Context, repo *DiskRepo, checksum string, progress func(string)) error {
	if repo.HasObject(checksum) {
		return nil
	}
	if progress != nil {
		progress(checksum)
	}

	key := s.key(checksum)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objectrepo: s3 GetObject %s/%s: %w", s.bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return fmt.Errorf("objectrepo: s3 read %s: %w", key, err)
	}

	if err := repo.PutEncodedObject(checksum, buf.Bytes()); err != nil {
		return fmt.Errorf("objectrepo: s3 store %s: %w", checksum, err)
	}
	s.logger.Info("fetched object from s3", "bucket", s.bucket, "key", key)
	return nil
}

func (s *S3Remote) fetchCommit(ctx context.Context, repo *DiskRepo, checksum string, progress func(string)) error {
	if err := s.fetchObject(ctx, repo, checksum, progress); err != nil {
		return err
	}
	commit, err := repo.ReadCommitOnly(checksum)
	if err != nil {
		return err
	}
	if err := s.fetchTree(ctx, repo, commit.Root, progress); err != nil {
		return err
	}
	if commit.Parent != "" {
		return s.fetchCommit(ctx, repo, commit.Parent, progress)
	}
	return nil
}

func (s *S3Remote) fetchTree(ctx context.Context, repo *DiskRepo, checksum string, progress func(string)) error {
	if err := s.fetchObject(ctx, repo, checksum, progress); err != nil {
		return err
	}
	tree, err := repo.ReadTree(checksum)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("objectrepo: s3 fetch cancelled: %w", err)
		}
		if entry.Kind == KindDir {
			if err := s.fetchTree(ctx, repo, entry.Checksum, progress); err != nil {
				return err
			}
			continue
		}
		if err := s.fetchObject(ctx, repo, entry.Checksum, progress); err != nil {
			return err
		}
	}
	return nil
}

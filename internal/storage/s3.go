package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/bmatcuk/doublestar/v4"
)

// maxDeleteBatch is the DeleteObjects per-request key limit.
const maxDeleteBatch = 1000

// S3Store is a Store backed by one S3 bucket and key prefix.
type S3Store struct {
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
}

// NewS3Store builds a store that shares sess with every other S3 store of
// the run.
func NewS3Store(sess *session.Session, bucket, prefix string) *S3Store {
	client := s3.New(sess)
	return NewS3StoreWithClient(client, s3manager.NewUploaderWithClient(client), bucket, prefix)
}

func NewS3StoreWithClient(client s3iface.S3API, uploader s3manageriface.UploaderAPI, bucket, prefix string) *S3Store {
	return &S3Store{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

func (s *S3Store) URI() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3Store) key(rel string) string {
	return JoinKey(s.prefix, rel)
}

func (s *S3Store) rootDir() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

func (s *S3Store) list(ctx context.Context, prefix string, fn func(key string)) error {
	err := s.client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				fn(aws.StringValue(obj.Key))
			}
			return !lastPage
		})
	if err != nil {
		return fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
	}
	return nil
}

func (s *S3Store) Glob(ctx context.Context, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("glob %s/%s: %w", s.URI(), pattern, doublestar.ErrBadPattern)
	}

	root := s.rootDir()
	var keys []string
	err := s.list(ctx, root+staticPrefix(pattern), func(key string) {
		rel := strings.TrimPrefix(key, root)
		if strings.HasSuffix(rel, "/") {
			return
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			keys = append(keys, rel)
		}
	})
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", s.URI(), pattern, ErrNoMatch)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.key(key), err)
	}
	return out.Body, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, s.key(key), err)
	}
	return nil
}

func (s *S3Store) RemoveAll(ctx context.Context, prefix string) error {
	target := s.key(prefix)
	if target == "" {
		return fmt.Errorf("refusing to remove bucket root s3://%s", s.bucket)
	}

	var keys []string
	if err := s.list(ctx, target+"/", func(key string) { keys = append(keys, key) }); err != nil {
		return err
	}

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		objects := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete under s3://%s/%s: %w", s.bucket, target, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("delete s3://%s/%s: %s: %s (%d failed)",
				s.bucket, aws.StringValue(first.Key), aws.StringValue(first.Code),
				aws.StringValue(first.Message), len(out.Errors))
		}
	}
	return nil
}

package storage

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// fakeS3 serves the handful of S3 calls the store makes from an in-memory map.
type fakeS3 struct {
	s3iface.S3API

	objects        map[string][]byte
	listedPrefixes []string
	deleteBatches  []int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	prefix := aws.StringValue(in.Prefix)
	f.listedPrefixes = append(f.listedPrefixes, prefix)

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	const pageSize = 1000
	for start := 0; ; start += pageSize {
		end := min(start+pageSize, len(keys))
		page := &s3.ListObjectsV2Output{}
		for _, k := range keys[start:end] {
			page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k)})
		}
		last := end >= len(keys)
		if !fn(page, last) || last {
			return nil
		}
	}
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "not found", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) DeleteObjectsWithContext(_ aws.Context, in *s3.DeleteObjectsInput, _ ...request.Option) (*s3.DeleteObjectsOutput, error) {
	f.deleteBatches = append(f.deleteBatches, len(in.Delete.Objects))
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.StringValue(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return f.UploadWithContext(aws.BackgroundContext(), in, opts...)
}

func (f *fakeS3) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Key)] = body
	return &s3manager.UploadOutput{Location: "s3://" + aws.StringValue(in.Bucket) + "/" + aws.StringValue(in.Key)}, nil
}

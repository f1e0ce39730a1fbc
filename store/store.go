package store

import (
	"context"
	"errors"
	"net/http"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotConfigured = errors.New("object store is not configured")
)

func New() Store {
	return &store{}
}

const CName = "store"

var log = logger.NewNamed(CName)

// deleteObjects accepts at most this many keys per call.
const maxBulkDeleteKeys = 1000

type Store interface {
	app.Component

	// Configured reports whether a bucket is set up. When false every
	// operation returns ErrNotConfigured.
	Configured() bool
	// DeleteObject removes a single key. Deleting an absent key is a
	// success, not an error.
	DeleteObject(ctx context.Context, key string) error
	// ListPrefix follows pagination until exhaustion and returns the
	// logically complete list of objects under the prefix.
	ListPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// BulkDelete attempts every key independently. A failing key never
	// aborts the remaining ones.
	BulkDelete(ctx context.Context, keys []string) (BulkDeleteResult, error)
}

// s3Client is the slice of the S3 API the store uses, satisfied by
// *s3.Client and by test fakes.
type s3Client interface {
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type store struct {
	bucket *string
	client s3Client
}

func (s *store) Init(a *app.App) (err error) {
	conf := a.MustComponent("config").(configSource).GetS3Store()
	if conf.Bucket == "" {
		log.Warn("s3 bucket is empty, object store operations are disabled")
		return nil
	}

	awsConf, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return err
	}

	// If creds are provided in the configuration, they are directly forwarded to the client as static credentials.
	if conf.Credentials.AccessKey != "" && conf.Credentials.SecretKey != "" {
		awsConf.Credentials = credentials.NewStaticCredentialsProvider(conf.Credentials.AccessKey, conf.Credentials.SecretKey, "")
	}
	awsConf.Region = conf.Region
	if conf.GoogleCompat {
		awsConf.HTTPClient = &http.Client{Transport: newResignTransport(http.DefaultTransport, awsConf)}
	}
	s.bucket = aws.String(conf.Bucket)
	s.client = s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
		o.UsePathStyle = conf.ForcePathStyle
	})
	return nil
}

func (s *store) Name() string {
	return CName
}

func (s *store) Configured() bool {
	return s.client != nil
}

func (s *store) DeleteObject(ctx context.Context, key string) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	input := &s3.DeleteObjectInput{
		Bucket: s.bucket,
		Key:    &key,
	}
	if _, err := s.client.DeleteObject(ctx, input); err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *store) ListPrefix(ctx context.Context, prefix string) (objects []ObjectInfo, err error) {
	if s.client == nil {
		return nil, ErrNotConfigured
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: s.bucket,
		Prefix: &prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:  aws.ToString(c.Key),
				Size: aws.ToInt64(c.Size),
			})
		}
	}
	return objects, nil
}

func (s *store) BulkDelete(ctx context.Context, keys []string) (result BulkDeleteResult, err error) {
	if s.client == nil {
		return BulkDeleteResult{}, ErrNotConfigured
	}
	result.TotalObjects = len(keys)
	result.Results = make([]ObjectDeleteResult, 0, len(keys))
	for start := 0; start < len(keys); start += maxBulkDeleteKeys {
		end := min(start+maxBulkDeleteKeys, len(keys))
		s.deleteBatch(ctx, keys[start:end], &result)
	}
	return result, nil
}

func (s *store) deleteBatch(ctx context.Context, keys []string, result *BulkDeleteResult) {
	objects := make([]types.ObjectIdentifier, len(keys))
	for i, key := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}
	output, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: s.bucket,
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(false),
		},
	})
	if err != nil {
		log.Warn("bulk delete batch failed", zap.Int("keys", len(keys)), zap.Error(err))
		for _, key := range keys {
			result.Results = append(result.Results, ObjectDeleteResult{Key: key, Error: err.Error()})
		}
		return
	}
	failed := make(map[string]string, len(output.Errors))
	for _, e := range output.Errors {
		failed[aws.ToString(e.Key)] = aws.ToString(e.Message)
	}
	for _, key := range keys {
		if msg, ok := failed[key]; ok {
			result.Results = append(result.Results, ObjectDeleteResult{Key: key, Error: msg})
		} else {
			result.DeletedObjects++
			result.Results = append(result.Results, ObjectDeleteResult{Key: key, Success: true})
		}
	}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

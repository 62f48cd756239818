package iceberg

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"catalog.icecat.io/internal/iceberg/metadata"
)

// S3MetadataIO persists metadata documents to S3-compatible object
// storage, built on s3.NewFromConfig and config.LoadDefaultConfig and
// trimmed to the plain GetObject/PutObject pair a metadata document
// round-trip needs: multipart upload and endpoint-resolver machinery
// would be overkill for a JSON document a few KB in size.
type S3MetadataIO struct {
	client *s3.Client
}

// NewS3MetadataIO loads the default AWS credential chain, optionally
// pointed at a custom (MinIO/S3-compatible) endpoint.
func NewS3MetadataIO(ctx context.Context, endpoint string, pathStyle bool) (*S3MetadataIO, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("iceberg: loading aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})
	return &S3MetadataIO{client: client}, nil
}

func splitS3Location(location string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(location, "s3://")
	if rest == location {
		return "", "", fmt.Errorf("iceberg: not an s3:// location: %s", location)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("iceberg: s3 location missing key: %s", location)
	}
	return parts[0], parts[1], nil
}

func (io *S3MetadataIO) Read(ctx context.Context, location string) (metadata.TableMetadata, error) {
	bucket, key, err := splitS3Location(location)
	if err != nil {
		return metadata.TableMetadata{}, err
	}
	out, err := io.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return metadata.TableMetadata{}, fmt.Errorf("iceberg: get %s: %w", location, err)
	}
	defer out.Body.Close()
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, rerr := out.Body.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if rerr != nil {
			break
		}
	}
	return unmarshalMetadata(buf)
}

func (io *S3MetadataIO) Write(ctx context.Context, root string, next metadata.TableMetadata) (string, error) {
	location := fmt.Sprintf("%s/metadata/%d-%s.metadata.json", strings.TrimSuffix(root, "/"), next.LastUpdatedMs, metadata.ETag(root+fmt.Sprint(next.LastUpdatedMs)))
	bucket, key, err := splitS3Location(location)
	if err != nil {
		return "", err
	}
	body, err := marshalMetadata(next)
	if err != nil {
		return "", err
	}
	_, err = io.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return "", fmt.Errorf("iceberg: put %s: %w", location, err)
	}
	return location, nil
}

// timeNow is overridable in tests; production code always uses time.Now.
var timeNow = time.Now

package queues

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/taskqueue"
)

// purgePayload mirrors internal/iceberg's purgePayload shape.
type purgePayload struct {
	Location string `json:"location"`
}

// ObjectPurger deletes every object stored under a tabular's base
// location. One implementation per storage kind, matching the per-kind
// MetadataIO/Vendor map shape internal/iceberg already uses.
type ObjectPurger interface {
	Purge(ctx context.Context, location string) error
}

// PurgeHandler implements the tabular_purge queue: delete every
// object-store object under the dropped tabular's location. Spec §4.4:
// purge failures mark the task failed without reviving the logical row.
type PurgeHandler struct {
	Purgers map[string]ObjectPurger // scheme ("s3", "file") -> purger
}

func (h *PurgeHandler) QueueName() string { return taskqueue.QueueNameTabularPurge }

func (h *PurgeHandler) Handle(ctx context.Context, task *catalogstore.Task, _ taskqueue.Heartbeater) error {
	var payload purgePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("taskqueue/queues: decode purge payload: %w", err)
	}
	scheme := locationScheme(payload.Location)
	purger, ok := h.Purgers[scheme]
	if !ok {
		return fmt.Errorf("taskqueue/queues: no purger configured for scheme %q", scheme)
	}
	if err := purger.Purge(ctx, payload.Location); err != nil {
		return fmt.Errorf("taskqueue/queues: purge %s: %w", payload.Location, err)
	}
	log.WithField("location", payload.Location).Info("purged tabular location")
	return nil
}

func locationScheme(location string) string {
	if i := strings.Index(location, "://"); i >= 0 {
		return location[:i]
	}
	return "file"
}

// S3Purger deletes every object under a bucket/prefix in batches of up to
// 1000 keys (DeleteObjects' limit), paging via ListObjectsV2 the same way
// storage/s3aws.go's S3AwsListObjects does.
type S3Purger struct {
	client *s3.Client
}

func NewS3Purger(ctx context.Context, endpoint string, pathStyle bool) (*S3Purger, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskqueue/queues: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})
	return &S3Purger{client: client}, nil
}

func (p *S3Purger) Purge(ctx context.Context, location string) error {
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("taskqueue/queues: parse location %q: %w", location, err)
	}
	bucket := u.Host
	prefix := strings.TrimPrefix(u.Path, "/")

	var continuationToken *string
	for {
		page, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return fmt.Errorf("taskqueue/queues: list objects under %s: %w", location, err)
		}
		if len(page.Contents) > 0 {
			ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
			for _, obj := range page.Contents {
				ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			}
			_, err := p.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{Objects: ids},
			})
			if err != nil {
				return fmt.Errorf("taskqueue/queues: delete objects under %s: %w", location, err)
			}
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			return nil
		}
		continuationToken = page.NextContinuationToken
	}
}

// LocalPurger removes a location on the local/HDFS-mounted filesystem,
// grounded on the same file:// / hdfs:// scheme handling
// internal/iceberg's LocalMetadataIO uses.
type LocalPurger struct{}

func (LocalPurger) Purge(ctx context.Context, location string) error {
	path := strings.TrimPrefix(strings.TrimPrefix(location, "file://"), "hdfs://")
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("taskqueue/queues: remove %s: %w", path, err)
	}
	return nil
}

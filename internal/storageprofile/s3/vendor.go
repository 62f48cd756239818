// Package s3 vends scoped AWS credentials for S3Profile warehouses. When
// an assume-role ARN is configured it calls STS AssumeRole to mint a
// short-lived, request-scoped session; that session, never the
// warehouse's own long-lived secret, is the credential handed back to a
// catalog client.
package s3

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"catalog.icecat.io/internal/storageprofile"
)

// StaticCredentials holds the warehouse's own long-lived access key pair,
// read from internal/secretstore, used either directly (when no assume-role
// ARN is configured) or as the base credentials for the STS AssumeRole call.
type StaticCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Vendor implements storageprofile.Vendor for S3Profile warehouses.
type Vendor struct {
	creds StaticCredentials
}

func New(creds StaticCredentials) *Vendor {
	return &Vendor{creds: creds}
}

func (v *Vendor) Vend(ctx context.Context, profile storageprofile.Profile, req storageprofile.VendRequest) (storageprofile.Credential, error) {
	p, ok := profile.(storageprofile.S3Profile)
	if !ok {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/s3: expected S3Profile, got %T", profile)
	}

	if err := storageprofile.RequireAllowedLocation(profile, req.Location); err != nil {
		return storageprofile.Credential{}, err
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(p.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(v.creds.AccessKeyID, v.creds.SecretAccessKey, "")),
	)
	if err != nil {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/s3: loading aws config: %w", err)
	}

	if p.AssumeRoleARN == "" {
		// No role configured: pass the warehouse's own scoped credentials
		// through directly, relying on the bucket policy to restrict access.
		return v.staticCredential(req)
	}

	client := sts.NewFromConfig(cfg)
	out, err := client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(p.AssumeRoleARN),
		RoleSessionName: aws.String(sessionName(req.SessionTag)),
		ExternalId:      optionalString(p.ExternalID),
		DurationSeconds: aws.Int32(3600),
		Policy:          aws.String(scopeDownPolicy(p.Bucket, req)),
	})
	if err != nil {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/s3: assume role %s: %w", p.AssumeRoleARN, err)
	}

	payload, err := json.Marshal(map[string]string{
		"s3.access-key-id":     aws.ToString(out.Credentials.AccessKeyId),
		"s3.secret-access-key": aws.ToString(out.Credentials.SecretAccessKey),
		"s3.session-token":     aws.ToString(out.Credentials.SessionToken),
		"s3.region":            p.Region,
	})
	if err != nil {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/s3: marshaling credential: %w", err)
	}

	return storageprofile.Credential{
		Payload:   payload,
		ExpiresAt: aws.ToTime(out.Credentials.Expiration),
	}, nil
}

func (v *Vendor) staticCredential(req storageprofile.VendRequest) (storageprofile.Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"s3.access-key-id":     v.creds.AccessKeyID,
		"s3.secret-access-key": v.creds.SecretAccessKey,
	})
	if err != nil {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/s3: marshaling static credential: %w", err)
	}
	return storageprofile.Credential{Payload: payload, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func sessionName(tag string) string {
	if tag == "" {
		return "icecat-catalog"
	}
	return "icecat-" + tag
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// scopeDownPolicy restricts the assumed session to the requested location
// and access level, so a read-only table config can't be used to write
// elsewhere in the bucket.
func scopeDownPolicy(bucket string, req storageprofile.VendRequest) string {
	actions := `["s3:GetObject","s3:ListBucket"]`
	if req.Write {
		actions = `["s3:GetObject","s3:PutObject","s3:DeleteObject","s3:ListBucket"]`
	}
	objects := bucket
	if i := strings.Index(req.Location, "://"); i >= 0 {
		objects = strings.TrimSuffix(req.Location[i+len("://"):], "/")
	}
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":%s,"Resource":["arn:aws:s3:::%s","arn:aws:s3:::%s/*"]}]}`, actions, bucket, objects)
}

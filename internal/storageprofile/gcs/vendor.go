// Package gcs vends GCS access tokens for GCSProfile warehouses, relying
// on a pre-configured oauth2.TokenSource rather than wiring in
// cloud.google.com/go/storage.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"catalog.icecat.io/internal/storageprofile"
)

// Vendor implements storageprofile.Vendor for GCSProfile warehouses. The
// token source is expected to already be scoped to the workload identity
// pool configured for the profile (built via
// golang.org/x/oauth2/google.JWTAccessTokenSourceWithScope against a
// service account key held in internal/secretstore); Vend fetches a fresh
// token from that one source for every request and packages it with the
// bucket name. The token is not downscoped to req.Location, and req.Write
// does not change its scope.
type Vendor struct {
	source oauth2.TokenSource
}

func New(source oauth2.TokenSource) *Vendor {
	return &Vendor{source: source}
}

func (v *Vendor) Vend(ctx context.Context, profile storageprofile.Profile, req storageprofile.VendRequest) (storageprofile.Credential, error) {
	p, ok := profile.(storageprofile.GCSProfile)
	if !ok {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/gcs: expected GCSProfile, got %T", profile)
	}

	if err := storageprofile.RequireAllowedLocation(profile, req.Location); err != nil {
		return storageprofile.Credential{}, err
	}

	token, err := v.source.Token()
	if err != nil {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/gcs: fetching token: %w", err)
	}

	return v.credentialFromToken(p, token)
}

func (v *Vendor) credentialFromToken(p storageprofile.GCSProfile, token *oauth2.Token) (storageprofile.Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"gcs.oauth2-token": token.AccessToken,
		"gcs.bucket":       p.Bucket,
	})
	if err != nil {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/gcs: marshaling credential: %w", err)
	}
	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}
	return storageprofile.Credential{Payload: payload, ExpiresAt: expiresAt}, nil
}


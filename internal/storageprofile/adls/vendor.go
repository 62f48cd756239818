// Package adls vends scoped Azure AD access tokens for ADLSProfile
// warehouses: construct the credential once in New, then mint a token per
// request in Vend. The vended payload is the AAD access token itself
// (scope https://storage.azure.com/.default) rather than a
// user-delegation SAS; callers exchange it for a SAS against the Data
// Lake REST API themselves.
package adls

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"catalog.icecat.io/internal/storageprofile"
)

const storageScope = "https://storage.azure.com/.default"

// Vendor implements storageprofile.Vendor for ADLSProfile warehouses using
// a client-credential flow (tenant/client ID plus a client secret held in
// internal/secretstore).
type Vendor struct {
	clientSecret string
}

func New(clientSecret string) *Vendor {
	return &Vendor{clientSecret: clientSecret}
}

func (v *Vendor) Vend(ctx context.Context, profile storageprofile.Profile, req storageprofile.VendRequest) (storageprofile.Credential, error) {
	p, ok := profile.(storageprofile.ADLSProfile)
	if !ok {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/adls: expected ADLSProfile, got %T", profile)
	}

	if err := storageprofile.RequireAllowedLocation(profile, req.Location); err != nil {
		return storageprofile.Credential{}, err
	}

	cred, err := azidentity.NewClientSecretCredential(p.TenantID, p.ClientID, v.clientSecret, nil)
	if err != nil {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/adls: building client secret credential: %w", err)
	}

	token, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{storageScope}})
	if err != nil {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/adls: fetching token: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"adls.sas-token":     token.Token,
		"adls.storage-account": p.StorageAccount,
		"adls.filesystem":      p.Filesystem,
	})
	if err != nil {
		return storageprofile.Credential{}, fmt.Errorf("storageprofile/adls: marshaling credential: %w", err)
	}

	return storageprofile.Credential{Payload: payload, ExpiresAt: token.ExpiresOn}, nil
}

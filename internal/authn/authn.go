// Package authn verifies inbound bearer tokens and resolves them to a
// Principal. Two verifiers are wired: OIDC/JWT (internal/authn) and
// Kubernetes ServiceAccount tokens (internal/authn/k8s, via client-go
// TokenReview). Authorization decisions (what a Principal may do) live
// in internal/authz; this package only answers "who is this".
package authn

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/icebergerr"
)

// PrincipalType distinguishes the two actor kinds this package
// recognizes: a human/service OIDC subject, or a Kubernetes ServiceAccount.
type PrincipalType string

const (
	PrincipalHuman   PrincipalType = "human"
	PrincipalService PrincipalType = "service"
	PrincipalK8sSA   PrincipalType = "k8s-service-account"
)

// Principal is the authenticated identity attached to a request context
// after a Verifier succeeds. ProjectID is resolved later, by the request's
// target warehouse; authn never infers tenancy from the token.
type Principal struct {
	Type    PrincipalType
	Subject string
	Email   string
	Groups  []string
}

// Verifier authenticates a single bearer token and returns the Principal it
// represents, or a *icebergerr.CatalogError with KindAuthenticationRequired
// if the token is invalid, expired, or unparseable.
type Verifier interface {
	Verify(ctx context.Context, bearerToken string) (Principal, error)
}

// Chain tries each Verifier in order and returns the first success. This is
// how OIDC and Kubernetes verification compose: a deployment can enable
// either or both depending on internal/config's AuthConfig.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, bearerToken string) (Principal, error) {
	if bearerToken == "" {
		return Principal{}, icebergerr.AuthenticationRequired()
	}

	var lastErr error
	for _, v := range c {
		p, err := v.Verify(ctx, bearerToken)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return Principal{}, icebergerr.AuthenticationRequired()
	}
	return Principal{}, fmt.Errorf("authn: no verifier accepted the token: %w", lastErr)
}

package authn

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/logging"
)

var log = logging.For("authn")

// OIDCVerifier verifies bearer tokens against a single discovered OIDC
// issuer. Discovery happens once in NewOIDCVerifier; every subsequent
// Verify call only checks the token's signature, expiry, issuer, and
// audience against cached JWKS.
type OIDCVerifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	issuer   string
}

// NewOIDCVerifier discovers the issuer's OIDC configuration and builds a
// token verifier scoped to audience. Discovery is attempted once; a
// failure is returned to the caller and is not retried.
func NewOIDCVerifier(ctx context.Context, issuerURL, audience string) (*OIDCVerifier, error) {
	if issuerURL == "" {
		return nil, fmt.Errorf("authn: oidc issuer url is required")
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("authn: oidc discovery against %s failed: %w", issuerURL, err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: audience})

	return &OIDCVerifier{provider: provider, verifier: verifier, issuer: issuerURL}, nil
}

type oidcClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, bearerToken string) (Principal, error) {
	idToken, err := v.verifier.Verify(ctx, bearerToken)
	if err != nil {
		log.WithError(err).Debug("oidc token verification failed")
		return Principal{}, icebergerr.Wrap(icebergerr.KindAuthenticationRequired, "invalid bearer token", err)
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		return Principal{}, icebergerr.Wrap(icebergerr.KindAuthenticationRequired, "unparseable token claims", err)
	}
	if claims.Subject == "" {
		return Principal{}, icebergerr.New(icebergerr.KindAuthenticationRequired, "token has no subject claim")
	}

	return Principal{
		Type:    PrincipalHuman,
		Subject: claims.Subject,
		Email:   claims.Email,
	}, nil
}

package hooks

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// deliveryTokenTTL bounds how long a signed delivery token stays valid.
// Endpoints receive a freshly signed token on every delivery attempt, so
// this only needs to outlive clock skew between catalogd and the receiver.
const deliveryTokenTTL = 2 * time.Minute

// signDeliveryToken builds a short-lived HS256 JWT authenticating a single
// webhook POST to endpointID, so a receiver can verify the request came
// from this catalog rather than an unauthenticated third party. secret is
// the endpoint's configured shared key (EndpointConfig.Secret); callers
// skip signing entirely when it is empty.
func signDeliveryToken(secret, endpointID string, event string) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Subject(endpointID).
		Issuer("catalogd").
		IssuedAt(now).
		Expiration(now.Add(deliveryTokenTTL)).
		Claim("event", event).
		Build()
	if err != nil {
		return "", fmt.Errorf("hooks: build delivery token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(secret)))
	if err != nil {
		return "", fmt.Errorf("hooks: sign delivery token: %w", err)
	}
	return string(signed), nil
}

// Package k8s verifies bearer tokens that are Kubernetes ServiceAccount
// tokens, by submitting a TokenReview to the API server the catalog is
// running alongside. This is the in-cluster counterpart to internal/authn's
// OIDC verifier, for deployments where workloads authenticate with their
// projected SA token rather than an external identity provider.
package k8s

import (
	"context"
	"fmt"

	authenticationv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"catalog.icecat.io/internal/authn"
	"catalog.icecat.io/internal/icebergerr"
)

// Verifier submits TokenReview requests against the API server's
// authentication.k8s.io/v1 endpoint.
type Verifier struct {
	client kubernetes.Interface
}

// NewInClusterVerifier builds a Verifier using the Pod's mounted service
// account to talk to the API server, the same in-cluster configuration
// shape client-go's own examples use.
func NewInClusterVerifier() (*Verifier, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("authn/k8s: not running in-cluster: %w", err)
	}
	return NewVerifierForConfig(cfg)
}

// NewVerifierForConfig builds a Verifier from an explicit rest.Config, for
// tests and for out-of-cluster operation against a provided kubeconfig.
func NewVerifierForConfig(cfg *rest.Config) (*Verifier, error) {
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("authn/k8s: building clientset: %w", err)
	}
	return &Verifier{client: clientset}, nil
}

// NewVerifier wraps an already-constructed clientset, primarily for tests
// that inject k8s.io/client-go/kubernetes/fake.Clientset.
func NewVerifier(client kubernetes.Interface) *Verifier {
	return &Verifier{client: client}
}

func (v *Verifier) Verify(ctx context.Context, bearerToken string) (authn.Principal, error) {
	review := &authenticationv1.TokenReview{
		Spec: authenticationv1.TokenReviewSpec{Token: bearerToken},
	}

	result, err := v.client.AuthenticationV1().TokenReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return authn.Principal{}, icebergerr.Wrap(icebergerr.KindAuthenticationRequired, "token review request failed", err)
	}
	if !result.Status.Authenticated {
		reason := result.Status.Error
		if reason == "" {
			reason = "token not authenticated"
		}
		return authn.Principal{}, icebergerr.New(icebergerr.KindAuthenticationRequired, reason)
	}

	return authn.Principal{
		Type:    authn.PrincipalK8sSA,
		Subject: result.Status.User.Username,
		Groups:  result.Status.User.Groups,
	}, nil
}

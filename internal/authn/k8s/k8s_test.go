package k8s

import (
	"context"
	"testing"

	authenticationv1 "k8s.io/api/authentication/v1"
	"k8s.io/apimachinery/pkg/runtime"
	kubefake "k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"
)

func TestVerifyAuthenticatedToken(t *testing.T) {
	client := kubefake.NewSimpleClientset()
	client.PrependReactor("create", "tokenreviews", func(action clienttesting.Action) (bool, runtime.Object, error) {
		review := action.(clienttesting.CreateAction).GetObject().(*authenticationv1.TokenReview)
		review.Status.Authenticated = true
		review.Status.User = authenticationv1.UserInfo{
			Username: "system:serviceaccount:icecat:worker",
			Groups:   []string{"system:serviceaccounts"},
		}
		return true, review, nil
	})

	v := NewVerifier(client)
	principal, err := v.Verify(context.Background(), "fake-sa-token")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if principal.Subject != "system:serviceaccount:icecat:worker" {
		t.Errorf("Subject = %q, want the service account username", principal.Subject)
	}
}

func TestVerifyRejectsUnauthenticatedToken(t *testing.T) {
	client := kubefake.NewSimpleClientset()
	client.PrependReactor("create", "tokenreviews", func(action clienttesting.Action) (bool, runtime.Object, error) {
		review := action.(clienttesting.CreateAction).GetObject().(*authenticationv1.TokenReview)
		review.Status.Authenticated = false
		review.Status.Error = "token expired"
		return true, review, nil
	})

	v := NewVerifier(client)
	if _, err := v.Verify(context.Background(), "expired-token"); err == nil {
		t.Fatal("expected an error for an unauthenticated token review result")
	}
}

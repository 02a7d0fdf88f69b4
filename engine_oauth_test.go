package authport_test

import (
	"context"
	"errors"
	"testing"

	authport "github.com/quvio/authport"
)

func TestLinkExternalAccountCreatesUser(t *testing.T) {
	engine, st := newTestEngine(t, nil)
	ctx := context.Background()

	user, err := engine.LinkExternalAccount(ctx, &authport.ExternalAccount{
		Email:         "oauth-user@example.org",
		Provider:      "oauth2",
		ProviderToken: "provider-token-1",
	})
	if err != nil {
		t.Fatalf("LinkExternalAccount failed: %v", err)
	}
	if user.AuthMethod != "oauth2" {
		t.Errorf("AuthMethod = %q, want oauth2", user.AuthMethod)
	}
	if !user.HasRole(authport.RoleUser) {
		t.Error("linked user missing default role")
	}

	ext, err := st.ExternalAccountForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("external account not persisted: %v", err)
	}
	if ext.Provider != "oauth2" || ext.Username != "oauth-user@example.org" {
		t.Errorf("stored account = %+v", ext)
	}

	// Accounts created through a provider never password-login.
	if _, _, err := engine.Login(ctx, "oauth-user@example.org", "anything"); !errors.Is(err, authport.ErrInvalidCredentials) {
		t.Errorf("provider account logged in with a password: %v", err)
	}
}

func TestLinkExternalAccountEmailConflict(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	// The bootstrap admin is a credentials account with this email.
	_, err := engine.LinkExternalAccount(context.Background(), &authport.ExternalAccount{
		Email:    adminUsername,
		Provider: "oauth2",
	})
	if !errors.Is(err, authport.ErrEmailAlreadyRegistered) {
		t.Fatalf("error = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestLinkExternalAccountRelinkRefreshes(t *testing.T) {
	engine, st := newTestEngine(t, nil)
	ctx := context.Background()

	first, err := engine.LinkExternalAccount(ctx, &authport.ExternalAccount{
		Email:         "oauth-user@example.org",
		Provider:      "oauth2",
		ProviderToken: "token-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	again, err := engine.LinkExternalAccount(ctx, &authport.ExternalAccount{
		Email:         "oauth-user@example.org",
		Provider:      "oauth2",
		ProviderToken: "token-2",
	})
	if err != nil {
		t.Fatalf("relink failed: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("relink created a second user")
	}

	ext, _ := st.ExternalAccountForUser(ctx, first.ID)
	if ext.ProviderToken != "token-2" {
		t.Errorf("ProviderToken = %q, want refreshed token-2", ext.ProviderToken)
	}
}

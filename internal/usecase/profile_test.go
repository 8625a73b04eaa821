package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arklim/account-auth-service/internal/core/port"
)

func TestProfileAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.verifiedUser(t, "a@x.com")

	user, err := f.profiles.Profile(ctx, session)
	if err != nil {
		t.Fatalf("Profile returned error: %v", err)
	}
	if user.Name.FirstName != "Alice" || user.PasswordHash != "" {
		t.Fatalf("unexpected profile %+v", user)
	}

	_, err = f.profiles.UpdateProfile(ctx, session, "Al", "")
	expectKind(t, err, KindValidation)

	updated, err := f.profiles.UpdateProfile(ctx, session, "  Alicia ", "Jones")
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.Name.FirstName != "Alicia" || updated.Name.LastName != "Jones" {
		t.Fatalf("unexpected name %+v", updated.Name)
	}

	// Profile updates must not touch credentials.
	f.login(t, "a@x.com", testPassword)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.verifiedUser(t, "a@x.com")

	if err := f.profiles.DeleteAccount(ctx, session, "Wr0ng!Password"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}

	if err := f.profiles.DeleteAccount(ctx, session, testPassword); err != nil {
		t.Fatalf("DeleteAccount returned error: %v", err)
	}

	if _, err := f.users.FindByEmail(ctx, "a@x.com", port.ProjectionProfile); err == nil {
		t.Fatal("user should be deleted")
	}
	_, err := f.auth.Authenticate(ctx, session.Token)
	expectKind(t, err, KindUnauthorized)

	revoked, err := f.ledger.IsRevoked(ctx, session.Token, session.Claims)
	if err != nil || !revoked {
		t.Fatalf("expected deleted account tokens to be revoked, got %v %v", revoked, err)
	}

	// Event publication failures are not reported to the caller.
	if f.events.names[len(f.events.names)-1] != "user.deleted" {
		t.Fatalf("expected user.deleted event, got %v", f.events.names)
	}
}

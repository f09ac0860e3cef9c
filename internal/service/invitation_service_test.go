package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
)

func TestInviteCreatesPlaceholderAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedAdmin(t, "admin@x.com", domain.RoleAdmin)

	res, err := env.invitations.Invite(ctx, InviteInput{Email: " New@X.com", Name: "New Hire"}, admin.ID)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if res.TempPassword == "" || res.Invitation.Status != domain.InvitationPending {
		t.Fatalf("unexpected result %+v", res)
	}
	if want := env.clock.Now().Add(DefaultInvitationTTL); !res.Invitation.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", res.Invitation.ExpiresAt, want)
	}

	user, err := env.repos.Users.GetByEmail(ctx, "new@x.com")
	if err != nil {
		t.Fatalf("placeholder user: %v", err)
	}
	if user.Role != domain.RoleEmployee || !user.IsActive || !user.IsFirstLogin {
		t.Fatalf("unexpected placeholder %+v", user)
	}

	if len(env.notifier.invitations) != 1 || env.notifier.invitations[0].TempPassword != res.TempPassword {
		t.Fatalf("notifier not called with the temp password: %+v", env.notifier.invitations)
	}

	entries, err := env.audits.ListByEntityID(ctx, res.Invitation.ID)
	if err != nil || len(entries) != 1 || entries[0].Action != domain.ActionInviteEmployee {
		t.Fatalf("expected one INVITE_EMPLOYEE entry, got %+v (%v)", entries, err)
	}
}

func TestInviteTwiceBeforeExpiryConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedAdmin(t, "admin@x.com", domain.RoleAdmin)

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if _, err := env.invitations.Invite(ctx, InviteInput{Email: email, Name: "Someone"}, admin.ID); err != nil {
			t.Fatalf("invite %s: %v", email, err)
		}
		before := env.auditCount(t)

		_, err := env.invitations.Invite(ctx, InviteInput{Email: email, Name: "Someone"}, admin.ID)
		if !errors.Is(err, apperror.ErrDuplicateInvitation) || apperror.GetCode(err) != apperror.CodeConflict {
			t.Fatalf("%s: expected duplicate invitation conflict, got %v", email, err)
		}
		if got := env.auditCount(t); got != before {
			t.Fatalf("%s: failed invite must not write audit rows", email)
		}
	}
}

func TestInviteExistingUserConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedAdmin(t, "admin@x.com", domain.RoleAdmin)

	_, err := env.invitations.Invite(ctx, InviteInput{Email: "admin@x.com", Name: "Admin Again"}, admin.ID)
	if !errors.Is(err, apperror.ErrDuplicateUser) {
		t.Fatalf("expected duplicate user, got %v", err)
	}

	user, _ := env.onboard(t, admin, "done@x.com")
	env.clock.Advance(30 * 24 * time.Hour)
	_, err = env.invitations.Invite(ctx, InviteInput{Email: user.Email, Name: "Done"}, admin.ID)
	if !errors.Is(err, apperror.ErrDuplicateUser) {
		t.Fatalf("activated user must not be re-invited, got %v", err)
	}
}

func TestInviteRenewsAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedAdmin(t, "admin@x.com", domain.RoleAdmin)

	first, err := env.invitations.Invite(ctx, InviteInput{Email: "slow@x.com", Name: "Slow"}, admin.ID)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	env.clock.Advance(DefaultInvitationTTL + time.Hour)

	second, err := env.invitations.Invite(ctx, InviteInput{Email: "slow@x.com", Name: "Slow Renamed"}, admin.ID)
	if err != nil {
		t.Fatalf("renewal: %v", err)
	}
	if second.Invitation.ID == first.Invitation.ID {
		t.Fatalf("renewal must create a new invitation")
	}

	list, err := env.invitations.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.Invitation.ID {
		t.Fatalf("expected renewed invitation first, got %+v", list)
	}
	if list[1].Status != domain.InvitationExpired {
		t.Fatalf("old invitation should be expired, got %s", list[1].Status)
	}
	if list[0].User == nil || list[0].User.Name != "Slow Renamed" {
		t.Fatalf("placeholder not renamed: %+v", list[0].User)
	}

	if _, err := env.auth.CompleteFirstLogin(ctx, FirstLoginInput{Email: "slow@x.com", TempPassword: first.TempPassword, NewPassword: "permanent-pw"}); !errors.Is(err, apperror.ErrInvalidCredential) {
		t.Fatalf("old temp password should no longer work, got %v", err)
	}
	if _, err := env.auth.CompleteFirstLogin(ctx, FirstLoginInput{Email: "slow@x.com", TempPassword: second.TempPassword, NewPassword: "permanent-pw"}); err != nil {
		t.Fatalf("first login with renewed password: %v", err)
	}
}

func TestInviteSurvivesNotifierFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedAdmin(t, "admin@x.com", domain.RoleAdmin)
	env.notifier.err = errors.New("smtp down")

	res, err := env.invitations.Invite(ctx, InviteInput{Email: "x@x.com", Name: "Xavier"}, admin.ID)
	if err != nil {
		t.Fatalf("invite should succeed when delivery fails: %v", err)
	}
	if _, err := env.repos.Invitations.LatestByEmail(ctx, "x@x.com"); err != nil {
		t.Fatalf("invitation should be committed: %v", err)
	}
	if res.TempPassword == "" {
		t.Fatalf("temp password should still be returned")
	}
}

func TestInviteValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.invitations.Invite(context.Background(), InviteInput{Email: "bad", Name: ""}, "admin")
	if apperror.GetCode(err) != apperror.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(apperror.DetailsOf(err)) != 2 {
		t.Fatalf("expected email and name details, got %+v", apperror.DetailsOf(err))
	}
}

func TestInviteAcceptsSingleLetterName(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t, "hr@x.com", domain.RoleHR)

	res, err := env.invitations.Invite(context.Background(), InviteInput{Email: "a@x.com", Name: "A"}, admin.ID)
	if err != nil {
		t.Fatalf("single-letter name should be accepted: %v", err)
	}
	if res.Invitation.Email != "a@x.com" {
		t.Fatalf("unexpected invitation: %+v", res.Invitation)
	}
}

func TestListReportsOverdueAsExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedAdmin(t, "admin@x.com", domain.RoleAdmin)
	if _, err := env.invitations.Invite(ctx, InviteInput{Email: "late@x.com", Name: "Late"}, admin.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	env.clock.Advance(DefaultInvitationTTL)

	list, err := env.invitations.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != domain.InvitationExpired {
		t.Fatalf("expected overdue invitation reported as expired, got %+v", list)
	}
	if list[0].InvitedBy == nil || list[0].InvitedBy.Email != "admin@x.com" {
		t.Fatalf("inviter summary missing")
	}
}

func TestExpireStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedAdmin(t, "admin@x.com", domain.RoleAdmin)

	stale, err := env.invitations.Invite(ctx, InviteInput{Email: "stale@x.com", Name: "Stale"}, admin.ID)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	env.clock.Advance(DefaultInvitationTTL - time.Hour)
	if _, err := env.invitations.Invite(ctx, InviteInput{Email: "fresh@x.com", Name: "Fresh"}, admin.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	env.clock.Advance(2 * time.Hour)

	n, err := env.invitations.ExpireStale(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one expiry, got %d (%v)", n, err)
	}
	if n, _ := env.invitations.ExpireStale(ctx); n != 0 {
		t.Fatalf("second sweep should be a no-op, got %d", n)
	}

	entries, err := env.audits.ListByEntityID(ctx, stale.Invitation.ID)
	if err != nil || len(entries) != 2 {
		t.Fatalf("expected invite and expire entries, got %d (%v)", len(entries), err)
	}
	last := entries[1]
	if last.Action != domain.ActionExpireInvitation || last.ActorID != nil {
		t.Fatalf("unexpected expiry entry %+v", last)
	}
}

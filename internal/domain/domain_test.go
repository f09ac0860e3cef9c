package domain

import (
	"regexp"
	"testing"
	"time"
)

func TestParseRoleIsCaseInsensitive(t *testing.T) {
	for _, raw := range []string{"admin", "Admin", " ADMIN "} {
		r, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
		if r != RoleAdmin {
			t.Fatalf("ParseRole(%q) = %s", raw, r)
		}
	}
	if _, err := ParseRole("manager"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	if !RoleHR.Privileged() || RoleEmployee.Privileged() {
		t.Fatalf("unexpected privileged set")
	}
}

func TestInvitationExpiry(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	inv := &Invitation{Status: InvitationPending, ExpiresAt: now.Add(time.Hour)}
	if inv.IsExpired(now) || !inv.Blocks(now) {
		t.Fatalf("fresh invitation should block")
	}
	if !inv.IsExpired(now.Add(time.Hour)) {
		t.Fatalf("invitation should expire exactly at ExpiresAt")
	}
	if inv.Blocks(now.Add(2 * time.Hour)) {
		t.Fatalf("expired invitation must not block")
	}

	inv.Status = InvitationCompleted
	if inv.Blocks(now) {
		t.Fatalf("completed invitation must not block")
	}
}

func TestMissingRequiredIgnoresOrder(t *testing.T) {
	if got := MissingRequired(nil); len(got) != 2 {
		t.Fatalf("expected two missing types, got %v", got)
	}

	resumeFirst := []Document{{Type: DocumentResume}, {Type: DocumentOther}, {Type: DocumentID}}
	if got := MissingRequired(resumeFirst); len(got) != 0 {
		t.Fatalf("expected none missing, got %v", got)
	}

	onlyID := []Document{{Type: DocumentID}, {Type: DocumentID}}
	got := MissingRequired(onlyID)
	if len(got) != 1 || got[0] != DocumentResume {
		t.Fatalf("expected RESUME missing, got %v", got)
	}
}

func TestParseDocumentType(t *testing.T) {
	if dt, err := ParseDocumentType("BANK_STATEMENT"); err != nil || dt != DocumentBankStatement {
		t.Fatalf("unexpected result %q %v", dt, err)
	}
	if _, err := ParseDocumentType("PASSPORT"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestOnboardingTransitions(t *testing.T) {
	cases := []struct {
		status   OnboardingStatus
		submit   bool
		review   bool
		editable bool
	}{
		{OnboardingPending, true, false, true},
		{OnboardingSubmitted, true, true, true},
		{OnboardingRejected, true, false, true},
		{OnboardingApproved, false, false, false},
	}
	for _, c := range cases {
		if c.status.CanSubmit() != c.submit {
			t.Errorf("%s CanSubmit = %v", c.status, !c.submit)
		}
		if c.status.CanReview() != c.review {
			t.Errorf("%s CanReview = %v", c.status, !c.review)
		}
		if c.status.ProfileEditable() != c.editable {
			t.Errorf("%s ProfileEditable = %v", c.status, !c.editable)
		}
	}
}

func TestNewEmployeeID(t *testing.T) {
	id := NewEmployeeID(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	if !regexp.MustCompile(`^EMP20260304[0-9A-F]{6}$`).MatchString(id) {
		t.Fatalf("unexpected employee id %q", id)
	}
}

package auth

import "testing"

func TestCanVerify(t *testing.T) {
	cases := []struct {
		role Role
		want bool
	}{
		{RoleCitizen, false},
		{RoleResearcher, true},
		{RoleAdministrator, true},
		{RoleGovernmentOfficial, true},
		{Role("superuser"), false},
		{Role(""), false},
	}
	for _, tc := range cases {
		u := &User{ID: "u", Role: tc.role}
		if got := CanVerify(u); got != tc.want {
			t.Fatalf("CanVerify(%q) = %v, want %v", tc.role, got, tc.want)
		}
	}
	if CanVerify(nil) {
		t.Fatalf("expected nil user to be denied")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(&User{Role: RoleAdministrator}) {
		t.Fatalf("expected administrator to be admin")
	}
	for _, r := range []Role{RoleCitizen, RoleResearcher, RoleGovernmentOfficial, Role("root")} {
		if IsAdmin(&User{Role: r}) {
			t.Fatalf("expected %q not to be admin", r)
		}
	}
	if IsAdmin(nil) {
		t.Fatalf("expected nil user not to be admin")
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"citizen":             RoleCitizen,
		"Researcher":          RoleResearcher,
		"Administrator":       RoleAdministrator,
		"admin":               RoleAdministrator,
		"GovernmentOfficial":  RoleGovernmentOfficial,
		"Government Official": RoleGovernmentOfficial,
		"government_official": RoleGovernmentOfficial,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil {
			t.Fatalf("ParseRole(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseRole("wizard"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

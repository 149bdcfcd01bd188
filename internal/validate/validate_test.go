package validate_test

import (
	"strings"
	"testing"

	"github.com/koorier/onboarding-api/internal/validate"
)

func TestUsername_Valid(t *testing.T) {
	for _, username := range []string{"abc", "john.doe", "a1b", "user_name-99", "ABC"} {
		res := validate.Username(username)
		if !res.Valid {
			t.Errorf("Username(%q): got invalid with errors %v, want valid", username, res.Errors)
		}
	}
}

func TestUsername_TooShort(t *testing.T) {
	res := validate.Username("ab")
	if res.Valid {
		t.Fatal("Username(\"ab\"): got valid, want invalid")
	}
	if len(res.Errors) != 1 || res.Errors[0] != "Username must be at least 3 characters" {
		t.Errorf("errors: got %v, want single min-length message", res.Errors)
	}
}

func TestUsername_Rules(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  string
	}{
		{"empty", "", "Username is required"},
		{"only spaces", "   ", "Username is required"},
		{"too long", strings.Repeat("a", 51), "Username cannot exceed 50 characters"},
		{"inner space", "ab cd", "Username cannot contain spaces"},
		{"illegal char", "ab!cd", "Only letters, numbers, dot (.), underscore (_), and hyphen (-) allowed"},
		{"leading special", ".abc", "Username must start with a letter or number"},
		{"trailing special", "abc-", "Username must end with a letter or number"},
		{"consecutive specials", "a..b", "No consecutive special characters allowed"},
		{"consecutive hyphens", "a--b", "No consecutive special characters allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate.Username(tt.username)
			if res.Valid {
				t.Fatalf("Username(%q): got valid, want invalid", tt.username)
			}
			found := false
			for _, e := range res.Errors {
				if e == tt.wantErr {
					found = true
				}
			}
			if !found {
				t.Errorf("errors: got %v, want to contain %q", res.Errors, tt.wantErr)
			}
		})
	}
}

func TestUsername_ShortInputsAlwaysInvalid(t *testing.T) {
	for _, username := range []string{"a", "ab", "z9", "x"} {
		if res := validate.Username(username); res.Valid {
			t.Errorf("Username(%q): got valid, want invalid (length < 3)", username)
		}
	}
}

func TestEmail_Valid(t *testing.T) {
	for _, email := range []string{"a@test.com", "john.doe@example.co.uk", "USER@TEST.COM", "a-b_c@my-domain.io"} {
		res := validate.Email(email)
		if !res.Valid {
			t.Errorf("Email(%q): got invalid with errors %v, want valid", email, res.Errors)
		}
	}
}

func TestEmail_AtSymbolCount(t *testing.T) {
	tests := []struct {
		email   string
		wantErr string
	}{
		{"no-at.test.com", "Email must contain @ symbol"},
		{"a@b@test.com", "Email can only contain one @ symbol"},
	}

	for _, tt := range tests {
		res := validate.Email(tt.email)
		if res.Valid {
			t.Fatalf("Email(%q): got valid, want invalid", tt.email)
		}
		found := false
		for _, e := range res.Errors {
			if e == tt.wantErr {
				found = true
			}
		}
		if !found {
			t.Errorf("Email(%q) errors: got %v, want to contain %q", tt.email, res.Errors, tt.wantErr)
		}
	}
}

func TestEmail_ConsecutiveDots(t *testing.T) {
	res := validate.Email("a..b@test.com")
	if res.Valid {
		t.Fatal("Email(\"a..b@test.com\"): got valid, want invalid")
	}
	found := false
	for _, e := range res.Errors {
		if e == "Email cannot have consecutive dots" {
			found = true
		}
	}
	if !found {
		t.Errorf("errors: got %v, want consecutive-dots message", res.Errors)
	}
}

func TestEmail_Rules(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr string
	}{
		{"empty", "", "Email is required"},
		{"too long", strings.Repeat("a", 250) + "@test.com", "Email cannot exceed 254 characters"},
		{"leading dot", ".abc@test.com", "Email cannot start with a dot"},
		{"trailing dot", "abc@test.com.", "Email cannot end with a dot"},
		{"no tld", "abc@test", "Please enter a valid email format"},
		{"one letter tld", "abc@test.c", "Please enter a valid email format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate.Email(tt.email)
			if res.Valid {
				t.Fatalf("Email(%q): got valid, want invalid", tt.email)
			}
			found := false
			for _, e := range res.Errors {
				if e == tt.wantErr {
					found = true
				}
			}
			if !found {
				t.Errorf("errors: got %v, want to contain %q", res.Errors, tt.wantErr)
			}
		})
	}
}

func TestPassword(t *testing.T) {
	if res := validate.Password(""); res.Valid || res.Errors[0] != "Password is required" {
		t.Errorf("empty password: got %+v", res)
	}
	if res := validate.Password("short"); res.Valid || res.Errors[0] != "Password must be at least 8 characters" {
		t.Errorf("short password: got %+v", res)
	}
	if res := validate.Password("longenough"); !res.Valid {
		t.Errorf("valid password: got %+v", res)
	}
}

func TestConfirmPassword(t *testing.T) {
	if res := validate.ConfirmPassword("secret12", ""); res.Valid {
		t.Error("empty confirmation: got valid, want invalid")
	}
	if res := validate.ConfirmPassword("secret12", "secret13"); res.Valid {
		t.Error("mismatched confirmation: got valid, want invalid")
	}
	if res := validate.ConfirmPassword("secret12", "secret12"); !res.Valid {
		t.Errorf("matching confirmation: got %+v, want valid", res)
	}
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		password  string
		wantScore int
		wantLabel string
	}{
		{"", 0, ""},
		{"abc", 0, validate.StrengthWeak},
		{"abcdefgh", 1, validate.StrengthWeak},
		{"Abcdefgh", 2, validate.StrengthMedium},
		{"Abcdefg1", 3, validate.StrengthStrong},
		{"Abcdefg1!", 4, validate.StrengthStrong},
	}

	for _, tt := range tests {
		score, label := validate.PasswordStrength(tt.password)
		if score != tt.wantScore || label != tt.wantLabel {
			t.Errorf("PasswordStrength(%q): got (%d, %q), want (%d, %q)",
				tt.password, score, label, tt.wantScore, tt.wantLabel)
		}
	}
}

// Package validate holds the pure field-format validators for the onboarding
// wizard. Validators collect every violated rule; callers typically surface
// only the first.
package validate

import (
	"regexp"
	"strings"
)

// Result is the outcome of a single field validation.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

var (
	whitespaceRe      = regexp.MustCompile(`\s`)
	usernameCharsetRe = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	alnumStartRe      = regexp.MustCompile(`^[a-zA-Z0-9]`)
	alnumEndRe        = regexp.MustCompile(`[a-zA-Z0-9]$`)
	consecSpecialRe   = regexp.MustCompile(`\.{2,}|_{2,}|-{2,}`)
	consecDotsRe      = regexp.MustCompile(`\.{2,}`)
	emailRe           = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?@[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z]{2,})+$`)
	lowerRe           = regexp.MustCompile(`[a-z]`)
	upperRe           = regexp.MustCompile(`[A-Z]`)
	digitRe           = regexp.MustCompile(`\d`)
	symbolRe          = regexp.MustCompile(`[^a-zA-Z\d]`)
)

// Username checks login format rules. Input is trimmed before checks.
func Username(username string) Result {
	username = strings.TrimSpace(username)
	if username == "" {
		return Result{Valid: false, Errors: []string{"Username is required"}}
	}

	var errs []string
	if len(username) < 3 {
		errs = append(errs, "Username must be at least 3 characters")
	}
	if len(username) > 50 {
		errs = append(errs, "Username cannot exceed 50 characters")
	}
	if whitespaceRe.MatchString(username) {
		errs = append(errs, "Username cannot contain spaces")
	}
	if !usernameCharsetRe.MatchString(username) {
		errs = append(errs, "Only letters, numbers, dot (.), underscore (_), and hyphen (-) allowed")
	}
	if !alnumStartRe.MatchString(username) {
		errs = append(errs, "Username must start with a letter or number")
	}
	if !alnumEndRe.MatchString(username) {
		errs = append(errs, "Username must end with a letter or number")
	}
	if consecSpecialRe.MatchString(username) {
		errs = append(errs, "No consecutive special characters allowed")
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Email checks email format rules. Input is trimmed and lower-cased before
// checks; the format is a permissive RFC-like pattern, with the upstream
// service remaining authoritative.
func Email(email string) Result {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Result{Valid: false, Errors: []string{"Email is required"}}
	}

	var errs []string
	if len(email) > 254 {
		errs = append(errs, "Email cannot exceed 254 characters")
	}
	if whitespaceRe.MatchString(email) {
		errs = append(errs, "Email cannot contain spaces")
	}

	atCount := strings.Count(email, "@")
	if atCount == 0 {
		errs = append(errs, "Email must contain @ symbol")
	} else if atCount > 1 {
		errs = append(errs, "Email can only contain one @ symbol")
	}

	if consecDotsRe.MatchString(email) {
		errs = append(errs, "Email cannot have consecutive dots")
	}
	if strings.HasPrefix(email, ".") {
		errs = append(errs, "Email cannot start with a dot")
	}
	if strings.HasSuffix(email, ".") {
		errs = append(errs, "Email cannot end with a dot")
	}

	// Only apply the full pattern when no more specific rule already failed.
	if atCount == 1 && len(errs) == 0 && !emailRe.MatchString(email) {
		errs = append(errs, "Please enter a valid email format")
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Password checks the gating acceptance rules: non-empty and at least 8
// characters. Strength scoring below is advisory only.
func Password(password string) Result {
	if password == "" {
		return Result{Valid: false, Errors: []string{"Password is required"}}
	}
	if len(password) < 8 {
		return Result{Valid: false, Errors: []string{"Password must be at least 8 characters"}}
	}
	return Result{Valid: true}
}

// ConfirmPassword checks that the confirmation matches the password.
func ConfirmPassword(password, confirm string) Result {
	if confirm == "" {
		return Result{Valid: false, Errors: []string{"Please confirm your password"}}
	}
	if confirm != password {
		return Result{Valid: false, Errors: []string{"Passwords do not match"}}
	}
	return Result{Valid: true}
}

// Required checks that a plain text field is non-empty after trimming.
func Required(value, message string) Result {
	if strings.TrimSpace(value) == "" {
		return Result{Valid: false, Errors: []string{message}}
	}
	return Result{Valid: true}
}

// Strength labels for the password strength indicator.
const (
	StrengthWeak   = "weak"
	StrengthMedium = "medium"
	StrengthStrong = "strong"
)

// PasswordStrength scores a password 0..4 from {length>=8, mixed case,
// digit, symbol} and maps the score to a UI label. It has no gating effect.
func PasswordStrength(password string) (int, string) {
	if password == "" {
		return 0, ""
	}

	score := 0
	if len(password) >= 8 {
		score++
	}
	if lowerRe.MatchString(password) && upperRe.MatchString(password) {
		score++
	}
	if digitRe.MatchString(password) {
		score++
	}
	if symbolRe.MatchString(password) {
		score++
	}

	switch {
	case score <= 1:
		return score, StrengthWeak
	case score == 2:
		return score, StrengthMedium
	default:
		return score, StrengthStrong
	}
}

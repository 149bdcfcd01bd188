package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
)

// AvailabilityResult is the outcome of the username/email uniqueness check.
// Success is true only when both identifiers are confirmed available; any
// transport or parse failure fails closed.
type AvailabilityResult struct {
	UsernameAvailable bool   `json:"usernameAvailable"`
	EmailAvailable    bool   `json:"emailAvailable"`
	UsernameError     string `json:"usernameError,omitempty"`
	EmailError        string `json:"emailError,omitempty"`
	Success           bool   `json:"success"`
}

const unableToVerifyMessage = "Unable to verify credentials. Please try again."

// availabilityResponse tolerates the several field names the validation
// endpoint has used for the same booleans.
type availabilityResponse struct {
	LoginExists       *bool          `json:"loginExists"`
	UsernameExists    *bool          `json:"usernameExists"`
	Login             *existsWrapper `json:"login"`
	UsernameAvailable *bool          `json:"usernameAvailable"`
	LoginAvailable    *bool          `json:"loginAvailable"`

	EmailExists    *bool          `json:"emailExists"`
	Email          *existsWrapper `json:"email"`
	EmailAvailable *bool          `json:"emailAvailable"`
}

type existsWrapper struct {
	Exists *bool `json:"exists"`
}

// usernameExists resolves the username flag; first non-null wins in the
// precedence loginExists, usernameExists, login.exists, usernameAvailable,
// loginAvailable. ok is false when no recognized field is present.
func (r availabilityResponse) usernameExists() (exists, ok bool) {
	switch {
	case r.LoginExists != nil:
		return *r.LoginExists, true
	case r.UsernameExists != nil:
		return *r.UsernameExists, true
	case r.Login != nil && r.Login.Exists != nil:
		return *r.Login.Exists, true
	case r.UsernameAvailable != nil:
		return !*r.UsernameAvailable, true
	case r.LoginAvailable != nil:
		return !*r.LoginAvailable, true
	}
	return false, false
}

// emailExists resolves the email flag; precedence emailExists, email.exists,
// emailAvailable.
func (r availabilityResponse) emailExists() (exists, ok bool) {
	switch {
	case r.EmailExists != nil:
		return *r.EmailExists, true
	case r.Email != nil && r.Email.Exists != nil:
		return *r.Email.Exists, true
	case r.EmailAvailable != nil:
		return !*r.EmailAvailable, true
	}
	return false, false
}

// CheckAvailability asks the public validation endpoint whether the username
// and email are free. One GET covers both identifiers.
func (c *Client) CheckAvailability(ctx context.Context, username, email string) AvailabilityResult {
	q := url.Values{}
	q.Set("login", username)
	q.Set("email", strings.ToLower(email))
	endpoint := c.publicBaseURL + "/user/validate?" + q.Encode()

	var data availabilityResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
		log.Printf("ERROR: availability check: %v", err)
		return AvailabilityResult{
			UsernameError: unableToVerifyMessage,
			EmailError:    unableToVerifyMessage,
		}
	}

	// A response carrying none of the known fields proves nothing; treat it
	// like a failed call rather than letting the wizard proceed unverified.
	usernameTaken, usernameKnown := data.usernameExists()
	emailTaken, emailKnown := data.emailExists()
	if !usernameKnown || !emailKnown {
		log.Printf("ERROR: availability check: unrecognized response shape for %q", username)
	}

	result := AvailabilityResult{
		UsernameAvailable: usernameKnown && !usernameTaken,
		EmailAvailable:    emailKnown && !emailTaken,
	}
	switch {
	case !usernameKnown:
		result.UsernameError = unableToVerifyMessage
	case usernameTaken:
		result.UsernameError = "Username is already taken. Please choose another."
	}
	switch {
	case !emailKnown:
		result.EmailError = unableToVerifyMessage
	case emailTaken:
		result.EmailError = "Email is already registered. Please use another email or login."
	}
	result.Success = result.UsernameAvailable && result.EmailAvailable
	return result
}

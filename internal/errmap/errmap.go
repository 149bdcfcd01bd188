// Package errmap translates upstream API error payloads into field-level or
// general messages for the wizard. The upstream service reports errors in
// several shapes (problem-detail, legacy message fields, per-field maps); the
// precedence here is detail, then title, then message, then error, with
// structured field errors appended independently of that chain.
package errmap

import (
	"encoding/json"
	"strings"
)

// Fields the mapper can attribute errors to. These match the wizard's form
// field identifiers.
const (
	FieldUserName      = "userName"
	FieldEmail         = "email"
	FieldBusinessName  = "businessName"
	FieldBusinessEmail = "businessEmail"
	FieldPostalCode    = "postalCode"
)

// FieldError is an error attributed to a single form field. Step, when
// non-zero, names the wizard step the field belongs to; the controller
// navigates back when a mapped error belongs to an earlier step.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Step    int    `json:"step,omitempty"`
}

// Parsed is the mapper output. GeneralMessage is empty whenever any field
// error was produced: field-level display takes priority over a banner.
type Parsed struct {
	FieldErrors    []FieldError `json:"fieldErrors"`
	GeneralMessage string       `json:"generalMessage,omitempty"`
}

const defaultGeneralMessage = "Registration failed. Please try again."

// knownErrors maps upstream error codes and phrases to form fields. The
// upstream service emits both SCREAMING_SNAKE codes and sentence phrases for
// the same condition depending on the endpoint.
var knownErrors = map[string]FieldError{
	"BUSINESS_EMAIL_ALREADY_EXISTS": {Field: FieldBusinessEmail, Message: "This business email is already registered"},
	"Business email already exists": {Field: FieldBusinessEmail, Message: "This business email is already registered"},

	"EMAIL_ALREADY_EXISTS": {Field: FieldEmail, Message: "This email is already registered", Step: 1},
	"Email already exists": {Field: FieldEmail, Message: "This email is already registered", Step: 1},

	"LOGIN_ALREADY_EXISTS":    {Field: FieldUserName, Message: "This username is already taken", Step: 1},
	"USERNAME_ALREADY_EXISTS": {Field: FieldUserName, Message: "This username is already taken", Step: 1},
	"Login already exists":    {Field: FieldUserName, Message: "This username is already taken", Step: 1},
	"Username already exists": {Field: FieldUserName, Message: "This username is already taken", Step: 1},

	"BUSINESS_NAME_ALREADY_EXISTS": {Field: FieldBusinessName, Message: "This business name is already registered"},
	"Business name already exists": {Field: FieldBusinessName, Message: "This business name is already registered"},

	"CLIENT_CODE_ALREADY_EXISTS": {Field: FieldBusinessName, Message: "A business with similar name already exists. Please use a different name"},
	"Client code already exists": {Field: FieldBusinessName, Message: "A business with similar name already exists. Please use a different name"},

	"INVALID_POSTAL_CODE": {Field: FieldPostalCode, Message: "Please enter a valid postal code"},
	"Invalid postal code": {Field: FieldPostalCode, Message: "Please enter a valid postal code"},
}

// apiError is the tolerant decode target for upstream error bodies.
type apiError struct {
	Detail  string `json:"detail"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Error   string `json:"error"`

	// Spring-style per-field validation errors: either a map of field name
	// to message(s), or a list of {field, message} objects.
	Errors      map[string]json.RawMessage `json:"errors"`
	FieldErrors []springFieldError         `json:"fieldErrors"`
}

type springFieldError struct {
	Field          string `json:"field"`
	ObjectName     string `json:"objectName"`
	Message        string `json:"message"`
	DefaultMessage string `json:"defaultMessage"`
}

// Parse maps a raw upstream error body to field errors and a general message.
// A non-JSON body is treated as {message: rawText}.
func Parse(body []byte) Parsed {
	var data apiError
	if err := json.Unmarshal(body, &data); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = "Unknown error occurred"
		}
		data = apiError{Message: text}
	}

	result := Parsed{GeneralMessage: defaultGeneralMessage}

	if data.Detail != "" {
		if mapping, ok := knownErrors[data.Detail]; ok {
			result.FieldErrors = append(result.FieldErrors, mapping)
			result.GeneralMessage = ""
		} else {
			result.GeneralMessage = humanize(data.Detail)
		}
	}

	if data.Title != "" && len(result.FieldErrors) == 0 {
		if mapping, ok := knownErrors[data.Title]; ok {
			result.FieldErrors = append(result.FieldErrors, mapping)
			result.GeneralMessage = ""
		} else if data.Detail == "" {
			result.GeneralMessage = data.Title
		}
	}

	if data.Message != "" && len(result.FieldErrors) == 0 {
		if mapping, ok := knownErrors[data.Message]; ok {
			result.FieldErrors = append(result.FieldErrors, mapping)
			result.GeneralMessage = ""
		} else if data.Detail == "" && data.Title == "" {
			result.GeneralMessage = data.Message
		}
	}

	if data.Error != "" && len(result.FieldErrors) == 0 &&
		data.Detail == "" && data.Title == "" && data.Message == "" {
		result.GeneralMessage = data.Error
	}

	// Structured per-field errors are appended regardless of the chain above.
	for field, raw := range data.Errors {
		for _, msg := range decodeMessages(raw) {
			result.FieldErrors = append(result.FieldErrors, FieldError{Field: field, Message: msg})
		}
	}

	for _, fe := range data.FieldErrors {
		field := fe.Field
		if field == "" {
			field = fe.ObjectName
		}
		msg := fe.Message
		if msg == "" {
			msg = fe.DefaultMessage
		}
		result.FieldErrors = append(result.FieldErrors, FieldError{Field: field, Message: msg})
	}

	if len(result.FieldErrors) > 0 {
		result.GeneralMessage = ""
	}

	return result
}

// StepFields returns the fields among the parsed errors tagged with the
// given step.
func (p Parsed) StepFields(step int) []FieldError {
	var out []FieldError
	for _, fe := range p.FieldErrors {
		if fe.Step == step {
			out = append(out, fe)
		}
	}
	return out
}

// HasStepError reports whether any parsed field error belongs to the given
// wizard step.
func (p Parsed) HasStepError(step int) bool {
	return len(p.StepFields(step)) > 0
}

// decodeMessages accepts either a single string or a list of strings.
func decodeMessages(raw json.RawMessage) []string {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// humanize converts an unmapped SCREAMING_SNAKE error code into a sentence:
// underscores become spaces, the text is lower-cased, and the first letter
// capitalized.
func humanize(code string) string {
	s := strings.ToLower(strings.ReplaceAll(code, "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

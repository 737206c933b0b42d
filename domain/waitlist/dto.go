package waitlist

import (
	"math"
	"strconv"
	"strings"

	"github.com/akeren/waitlist-intake/internal/models"
)

// SubmitRequest is a decoded submission. Fields hold the raw text after
// coercion; normalization happens in the service.
type SubmitRequest struct {
	Email  string `json:"email" validate:"required,waitlist_email"`
	Source string `json:"source"`
	// Honeypot. Hidden from humans, filled in by bots.
	HP string `json:"hp"`
}

// SubmissionMeta is what the transport knows about the caller.
type SubmissionMeta struct {
	ClientIP  string
	UserAgent string
}

type Outcome string

const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeHoneypot       Outcome = "honeypot"
	OutcomeInvalidPayload Outcome = "invalid_payload"
	OutcomeInvalidEmail   Outcome = "invalid_email"
	OutcomeStoreError     Outcome = "store_error"
)

// SubmitResult is returned for every submission that ends in 200.
type SubmitResult struct {
	Outcome Outcome
}

// NewSubmitRequest builds a request from a decoded JSON object.
func NewSubmitRequest(body map[string]any) *SubmitRequest {
	return &SubmitRequest{
		Email:  coerceField(body["email"]),
		Source: coerceField(body["source"]),
		HP:     coerceField(body["hp"]),
	}
}

// coerceField renders a JSON value as text. false, 0, "" and null count as
// absent. Arrays join with commas and objects render as "[object Object]".
func coerceField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	}
	return jsString(v)
}

func jsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = jsString(e)
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}

// formatNumber switches to exponent form outside [1e-6, 1e21), with no
// zero padding in the exponent.
func formatNumber(f float64) string {
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}

func ToWaitlistEntryModel(email, source string, meta SubmissionMeta, createdAt string) *models.WaitlistEntry {
	return &models.WaitlistEntry{
		Email:     email,
		Source:    source,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		CreatedAt: createdAt,
	}
}

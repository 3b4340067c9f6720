package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Provider names. They double as the organization identifiers accepted by the
// universal dispatcher.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Identifiers produced for failures that never reached the provider.
const (
	IdentifierTimeout         = "timeout"
	IdentifierConnectionError = "connection_error"
)

// ErrorKind represents the category of an API failure.
type ErrorKind string

const (
	KindUnmapped      ErrorKind = "unmapped"
	KindAuthorization ErrorKind = "authorization"
	KindRateLimit     ErrorKind = "rate_limit"
	KindTokenLimit    ErrorKind = "token_limit"
	KindClient        ErrorKind = "client"
	KindServer        ErrorKind = "server"
	KindTimeout       ErrorKind = "timeout"
	KindUsageLimit    ErrorKind = "usage_limit"
)

type kindSpec struct {
	kind        ErrorKind
	message     string
	identifiers map[string][]string // provider -> raw identifiers
}

const unmappedMessage = "An API error occurred."

// taxonomy is walked in order; the first kind claiming an identifier wins.
var taxonomy = []kindSpec{
	{
		kind:    KindAuthorization,
		message: "Authentication or authorization failed.",
		identifiers: map[string][]string{
			ProviderOpenAI:    {"invalid_api_key", "invalid_authentication", "authentication_error", "permission_error", "invalid_organization"},
			ProviderAnthropic: {"authentication_error", "permission_error", "invalid_api_key"},
			ProviderGoogle:    {"API_KEY_INVALID", "UNAUTHENTICATED", "PERMISSION_DENIED"},
			ProviderOllama:    {"unauthorized", "forbidden"},
		},
	},
	{
		kind:    KindRateLimit,
		message: "Rate limit exceeded.",
		identifiers: map[string][]string{
			ProviderOpenAI:    {"rate_limit_exceeded", "requests", "tokens"},
			ProviderAnthropic: {"rate_limit_error", "rate_limit_exceeded"},
			ProviderGoogle:    {"RATE_LIMIT_EXCEEDED", "RESOURCE_EXHAUSTED"},
			ProviderOllama:    {"too_many_requests"},
		},
	},
	{
		kind:    KindTokenLimit,
		message: "Token limit exceeded.",
		identifiers: map[string][]string{
			ProviderOpenAI:    {"context_length_exceeded", "max_tokens_exceeded", "string_above_max_length"},
			ProviderAnthropic: {},
			ProviderGoogle:    {"MAX_TOKENS_EXCEEDED"},
			ProviderOllama:    {"request_entity_too_large"},
		},
	},
	{
		kind:    KindClient,
		message: "Client error occurred.",
		identifiers: map[string][]string{
			ProviderOpenAI:    {"invalid_request_error", "model_not_found", "bad_request", IdentifierConnectionError},
			ProviderAnthropic: {"invalid_request_error", "request_too_large", "not_found_error", "bad_request", IdentifierConnectionError},
			ProviderGoogle:    {"INVALID_ARGUMENT", "FAILED_PRECONDITION", "NOT_FOUND", IdentifierConnectionError},
			ProviderOllama:    {"bad_request", "not_found", IdentifierConnectionError},
		},
	},
	{
		kind:    KindServer,
		message: "Server error occurred.",
		identifiers: map[string][]string{
			ProviderOpenAI:    {"server_error", "service_unavailable", "engine_overloaded"},
			ProviderAnthropic: {"api_error", "overloaded_error", "server_error"},
			ProviderGoogle:    {"INTERNAL", "UNAVAILABLE"},
			ProviderOllama:    {"internal_server_error", "bad_gateway", "service_unavailable"},
		},
	},
	{
		kind:    KindTimeout,
		message: "Request timed out.",
		identifiers: map[string][]string{
			ProviderOpenAI:    {IdentifierTimeout, "request_timeout"},
			ProviderAnthropic: {IdentifierTimeout, "timeout_error"},
			ProviderGoogle:    {IdentifierTimeout, "DEADLINE_EXCEEDED"},
			ProviderOllama:    {IdentifierTimeout, "request_timeout", "gateway_timeout"},
		},
	},
	{
		kind:    KindUsageLimit,
		message: "Usage limit exceeded.",
		identifiers: map[string][]string{
			ProviderOpenAI:    {"insufficient_quota", "billing_hard_limit_reached", "billing_not_active"},
			ProviderAnthropic: {"billing_error"},
			ProviderGoogle:    {"BILLING_DISABLED", "QUOTA_EXCEEDED"},
			ProviderOllama:    {},
		},
	},
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrUnmapped      = &Error{Kind: KindUnmapped}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrRateLimit     = &Error{Kind: KindRateLimit}
	ErrTokenLimit    = &Error{Kind: KindTokenLimit}
	ErrClient        = &Error{Kind: KindClient}
	ErrServer        = &Error{Kind: KindServer}
	ErrTimeout       = &Error{Kind: KindTimeout}
	ErrUsageLimit    = &Error{Kind: KindUsageLimit}
)

// Error is a provider failure classified into the error taxonomy.
type Error struct {
	Kind        ErrorKind
	Provider    string
	Identifier  string // raw identifier that selected Kind, if any
	Message     string // kind default message followed by the provider's text
	StatusCode  int
	Retryable   bool
	RetryAfter  *time.Duration
	ProviderErr error // Original provider-specific error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return DefaultMessage(e.Kind)
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kinds returns the concrete kinds in matching order.
func Kinds() []ErrorKind {
	return lo.Map(taxonomy, func(s kindSpec, _ int) ErrorKind { return s.kind })
}

// DefaultMessage returns the human message of a kind.
func DefaultMessage(kind ErrorKind) string {
	for _, s := range taxonomy {
		if s.kind == kind {
			return s.message
		}
	}
	return unmappedMessage
}

// Identifiers returns the raw identifiers a kind claims for a provider.
func Identifiers(kind ErrorKind, provider string) []string {
	for _, s := range taxonomy {
		if s.kind == kind {
			return s.identifiers[provider]
		}
	}
	return nil
}

// Classify maps raw identifiers to a kind. Candidates are tried in order and
// each candidate is checked against every kind in taxonomy order. The
// identifier that matched is returned alongside the kind.
func Classify(provider string, candidates ...string) (ErrorKind, string) {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		for _, s := range taxonomy {
			if lo.ContainsBy(s.identifiers[provider], func(id string) bool {
				return strings.EqualFold(id, candidate)
			}) {
				return s.kind, candidate
			}
		}
	}
	return KindUnmapped, ""
}

// KindForStatus classifies a failure from its HTTP status alone.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 400 && status < 500:
		return KindClient
	case status >= 500 && status < 600:
		return KindServer
	default:
		return KindUnmapped
	}
}

func newError(kind ErrorKind, provider, identifier string, status int, text string, cause error) *Error {
	msg := DefaultMessage(kind)
	if text != "" {
		msg += " " + text
	}
	return &Error{
		Kind:        kind,
		Provider:    provider,
		Identifier:  identifier,
		Message:     msg,
		StatusCode:  status,
		Retryable:   retryableKind(kind),
		ProviderErr: cause,
	}
}

// NewAPIError classifies a provider error whose body was understood. The
// identifiers are tried in order; an unmatched error maps to KindUnmapped.
func NewAPIError(provider string, status int, text string, cause error, identifiers ...string) *Error {
	kind, matched := Classify(provider, identifiers...)
	return newError(kind, provider, matched, status, text, cause)
}

// NewStatusError classifies a provider error whose body could not be parsed.
func NewStatusError(provider string, status int, text string, cause error) *Error {
	if text == "" {
		text = fmt.Sprintf("HTTP %d", status)
	}
	return newError(KindForStatus(status), provider, "", status, text, cause)
}

// NewTransportError classifies a failure that happened before a response
// arrived: timeouts map to KindTimeout, everything else to KindClient.
func NewTransportError(provider string, err error) *Error {
	id := IdentifierConnectionError
	if isTimeout(err) {
		id = IdentifierTimeout
	}
	kind, matched := Classify(provider, id)
	return newError(kind, provider, matched, 0, err.Error(), err)
}

// MapError funnels any failure into the taxonomy. Errors that are already
// classified, and validation errors, are returned unchanged.
func MapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return err
	}
	if isTransport(err) {
		return NewTransportError(provider, err)
	}
	return newError(KindUnmapped, provider, "", 0, err.Error(), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTransport(err error) bool {
	if isTimeout(err) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func retryableKind(kind ErrorKind) bool {
	switch kind {
	case KindRateLimit, KindServer, KindTimeout:
		return true
	default:
		return false
	}
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// ParseRetryAfter reads a Retry-After header value given either in seconds
// or as an HTTP date. It returns nil when the value is absent or unusable.
func ParseRetryAfter(value string) *time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return nil
		}
		d := time.Duration(seconds) * time.Second
		return &d
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return &d
		}
	}
	return nil
}

// ValidationError reports a generation parameter outside its bounds. It is
// raised before any request is sent and never mapped through the taxonomy.
type ValidationError struct {
	Param string
	Value any
	Bound string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: must be %s", e.Param, e.Value, e.Bound)
}

// UnsupportedOrganizationError reports an organization with no adapter.
type UnsupportedOrganizationError struct {
	Organization string
	Supported    []string
}

func (e *UnsupportedOrganizationError) Error() string {
	return fmt.Sprintf("unsupported organization %q (supported: %s)", e.Organization, strings.Join(e.Supported, ", "))
}

// AttributeNotFoundError reports a name resolved on neither the dispatcher
// nor the adapter it wraps.
type AttributeNotFoundError struct {
	Name    string
	Adapter string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("attribute %q not found on %s adapter", e.Name, e.Adapter)
}

// LibraryNotAvailableError reports a provider backend compiled out of the
// binary.
type LibraryNotAvailableError struct {
	Provider string
	BuildTag string
}

func (e *LibraryNotAvailableError) Error() string {
	return fmt.Sprintf("provider %q is not available in this build (built with -tags %s)", e.Provider, e.BuildTag)
}

package types

import "strings"

// ErrorKind enumerates every error kind the core can surface to the
// control plane, per the error taxonomy. It replaces the mix of raw
// strings, tagged maps, and exceptions a dynamically typed reference
// implementation would use with one closed, typed enum.
type ErrorKind string

const (
	ErrAlreadyRunning ErrorKind = "already_running"
	ErrAlreadyStopped ErrorKind = "already_stopped"
	ErrLifecycleBusy  ErrorKind = "lifecycle_busy"

	ErrConfigInvalid           ErrorKind = "config_invalid"
	ErrPassphraseNotSet        ErrorKind = "passphrase_not_set"
	ErrPassphraseInvalidLength ErrorKind = "passphrase_invalid_length"
	ErrConfirmationRequired    ErrorKind = "confirmation_required"

	ErrAdapterNotFound  ErrorKind = "adapter_not_found"
	ErrAdapterNoAPMode  ErrorKind = "adapter_no_ap_mode"
	ErrNo6GHzAPAdapter  ErrorKind = "no_6ghz_ap_adapter"

	ErrHostapdInvalidCountryCodeFor80211d ErrorKind = "hostapd_invalid_country_code_for_80211d"
	ErrCountryNotSet                      ErrorKind = "country_not_set"

	ErrMissingBinary        ErrorKind = "missing_binary"
	ErrDependencyMissing    ErrorKind = "dependency_missing"
	ErrEngineSpawnFailed    ErrorKind = "engine_spawn_failed"
	ErrEngineCrashEarly     ErrorKind = "engine_crash_early"
	ErrEngineCrashLate      ErrorKind = "engine_crash_late"
	ErrDriverRejectedChannel ErrorKind = "driver_rejected_channel"

	ErrAPReadyTimeout     ErrorKind = "ap_ready_timeout"
	ErrAPInterfaceNotUp   ErrorKind = "ap_interface_not_up"
	ErrAPTypeMismatch     ErrorKind = "ap_type_mismatch"
	ErrSSIDNotAdvertised  ErrorKind = "ssid_not_advertised"

	ErrFirewallApplyFailed      ErrorKind = "firewall_apply_failed"
	ErrFirewallRevertIncomplete ErrorKind = "firewall_revert_incomplete"

	ErrTuningPartiallyApplied ErrorKind = "tuning_partially_applied"

	ErrInternal ErrorKind = "internal_error"
)

// ErrorDetail is the structured, user-facing payload attached to a
// LifecycleError: a short title, optional remediation sentence, and the
// list of underlying field/validation errors when applicable.
type ErrorDetail struct {
	Title       string   `json:"title"`
	Remediation string   `json:"remediation,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// LifecycleError is the single error type every failure path in the core
// constructs. It carries enough structure for the control plane to render
// a result_code, a human message, and remediation, without ever needing to
// type-switch on an ad hoc error shape.
type LifecycleError struct {
	Kind     ErrorKind
	Detail   *ErrorDetail
	Warnings []string
	Cause    error
}

func (e *LifecycleError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Detail != nil && e.Detail.Title != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail.Title)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *LifecycleError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, &LifecycleError{Kind: X}) match on Kind alone,
// which is how callers probe for a specific error kind without caring
// about Detail/Cause.
func (e *LifecycleError) Is(target error) bool {
	t, ok := target.(*LifecycleError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError constructs a LifecycleError with an optional remediation
// sentence and a freeform detail title.
func NewError(kind ErrorKind, title, remediation string, cause error) *LifecycleError {
	return &LifecycleError{
		Kind:   kind,
		Detail: &ErrorDetail{Title: title, Remediation: remediation},
		Cause:  cause,
	}
}

// FieldError describes one failed validation rule on a Config field.
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) Error() string { return f.Field + ": " + f.Message }

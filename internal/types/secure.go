package types

import "log/slog"

// secretPlaceholder replaces secret values in logs and serialized output.
const secretPlaceholder = "***REDACTED***"

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values such as the Azure client secret.
// String(), MarshalJSON() and LogValue() all return a redacted placeholder;
// Unmask() retrieves the raw value where it is genuinely needed (e.g. the
// body of a token exchange request).
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return secretPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string so secrets
// never appear in config dumps or API responses.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + secretPlaceholder + `"`), nil
}

// LogValue redacts the secret in slog output.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(secretPlaceholder)
}

// Unmask returns the raw plaintext value. Usage should be limited to the
// call sites that actually transmit the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether the secret holds a non-empty value.
func (s SecretString) IsSet() bool {
	return len(s) > 0
}

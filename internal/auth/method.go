package auth

import (
	"fmt"
	"strings"
)

// Method selects which identifier a login accepts. It is chosen once at
// start-up from configuration.
type Method string

const (
	MethodUsername      Method = "username"
	MethodEmail         Method = "email"
	MethodUsernameEmail Method = "username_email"
)

// ParseMethod validates a configured login method.
func ParseMethod(v string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(v))); m {
	case MethodUsername, MethodEmail, MethodUsernameEmail:
		return m, nil
	case "":
		return MethodUsernameEmail, nil
	default:
		return "", fmt.Errorf("unknown auth method %q", v)
	}
}

// VerificationMode decides whether an unverified primary email blocks login.
type VerificationMode string

const (
	VerificationMandatory VerificationMode = "mandatory"
	VerificationOptional  VerificationMode = "optional"
	VerificationNone      VerificationMode = "none"
)

// ParseVerificationMode validates a configured email verification mode.
func ParseVerificationMode(v string) (VerificationMode, error) {
	switch m := VerificationMode(strings.ToLower(strings.TrimSpace(v))); m {
	case VerificationMandatory, VerificationOptional, VerificationNone:
		return m, nil
	case "":
		return VerificationOptional, nil
	default:
		return "", fmt.Errorf("unknown email verification mode %q", v)
	}
}

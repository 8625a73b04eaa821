package security

import (
	"fmt"
	"strings"
)

// PasswordValidationError represents password policy violations.
type PasswordValidationError struct {
	Code       string
	Message    string
	Violations []string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate runs every rule and reports all requirements the password misses
// in a single error.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}

	var missing []string
	for _, rule := range v.rules {
		err := rule.Validate(password)
		if err == nil {
			continue
		}
		if pErr, ok := err.(*PasswordValidationError); ok {
			missing = append(missing, pErr.Message)
			continue
		}
		return err
	}

	if len(missing) == 0 {
		return nil
	}
	return &PasswordValidationError{
		Code:       "password_policy",
		Message:    "Password must contain: " + strings.Join(missing, ", "),
		Violations: missing,
	}
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("%d characters long", min),
			}
		}
		return nil
	})
}

// RequireUppercaseRule ensures the password contains an ASCII uppercase letter.
func RequireUppercaseRule() PasswordRule {
	return requireAny("uppercase", "one uppercase letter", func(r rune) bool { return r >= 'A' && r <= 'Z' })
}

// RequireLowercaseRule ensures the password contains an ASCII lowercase letter.
func RequireLowercaseRule() PasswordRule {
	return requireAny("lowercase", "one lowercase letter", func(r rune) bool { return r >= 'a' && r <= 'z' })
}

// RequireDigitRule ensures the password contains at least one digit.
func RequireDigitRule() PasswordRule {
	return requireAny("digit", "one number", func(r rune) bool { return r >= '0' && r <= '9' })
}

// RequireSpecialRule ensures the password contains one of the allowed special characters.
func RequireSpecialRule(allowed string) PasswordRule {
	return requireAny("special", fmt.Sprintf("one special character (%s)", allowed), func(r rune) bool {
		return strings.ContainsRune(allowed, r)
	})
}

func requireAny(code, message string, match func(rune) bool) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if match(r) {
				return nil
			}
		}
		return &PasswordValidationError{Code: code, Message: message}
	})
}

package security

const (
	defaultMinPasswordLength = 8

	// PasswordSpecialCharacters lists the symbols accepted by the password policy.
	PasswordSpecialCharacters = "@$!%*?&"
)

var defaultPolicy = DefaultPasswordValidator()

// DefaultPasswordValidator returns the validator every password-setting flow uses:
// at least eight characters with an uppercase letter, a lowercase letter, a digit
// and one of PasswordSpecialCharacters.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		RequireUppercaseRule(),
		RequireLowercaseRule(),
		RequireDigitRule(),
		RequireSpecialRule(PasswordSpecialCharacters),
	)
}

// ValidatePassword checks password against the default policy.
func ValidatePassword(password string) error {
	return defaultPolicy.Validate(password)
}

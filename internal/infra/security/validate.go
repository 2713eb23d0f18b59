package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// Strength grades a password that already satisfies the policy.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

const (
	minPasswordLength = 8
	maxFreeTextLength = 1000
)

var (
	emailRegex  = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)+$`)
	handleRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

	// ErrInvalidEmail rejects addresses that do not look like local@domain.tld.
	ErrInvalidEmail = domain.NewError(domain.KindValidation, "InvalidEmail", "invalid email format")
	// ErrInvalidHandle rejects handles outside 3-30 alphanumeric or underscore characters.
	ErrInvalidHandle = domain.NewError(domain.KindValidation, "InvalidHandle", "handle must be 3-30 characters of letters, digits or underscore")
)

// DefaultPasswordValidator enforces length and the four character classes.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(minPasswordLength),
		RequireUpperRule(),
		RequireLowerRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
	)
}

var defaultValidator = DefaultPasswordValidator()

// ValidateEmailFormat checks the syntactic shape of an address.
func ValidateEmailFormat(email string) error {
	email = strings.TrimSpace(email)
	if len(email) > 254 || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateHandleFormat checks the handle character set and length.
func ValidateHandleFormat(handle string) error {
	if !handleRegex.MatchString(handle) {
		return ErrInvalidHandle
	}
	return nil
}

// ValidatePasswordStrength enforces the password policy and grades the result. userInputs
// (email, names) lower the grade when the password is derived from them.
func ValidatePasswordStrength(password string, userInputs ...string) (Strength, error) {
	if err := defaultValidator.Validate(password); err != nil {
		return StrengthWeak, err
	}
	return GradePassword(password, userInputs...), nil
}

// GradePassword combines length with the zxcvbn estimate.
func GradePassword(password string, userInputs ...string) Strength {
	score := zxcvbn.PasswordStrength(password, userInputs).Score
	length := utf8.RuneCountInString(password)

	switch {
	case score >= 3 && length >= 12:
		return StrengthStrong
	case score >= 2 || length >= 12:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}

// SanitizeFreeText trims input, strips angle brackets and truncates to 1000 characters.
// It is not a substitute for output encoding.
func SanitizeFreeText(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	cleaned = strings.TrimSpace(cleaned)
	if utf8.RuneCountInString(cleaned) > maxFreeTextLength {
		cleaned = string([]rune(cleaned)[:maxFreeTextLength])
	}
	return cleaned
}

package security

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// PasswordValidationError names the first policy rule a password violates.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule checks one aspect of the password policy.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate calls f.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies rules in order and stops at the first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	return &PasswordValidator{rules: append([]PasswordRule(nil), rules...)}
}

// Validate returns the first violation, or nil when every rule passes.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule counts runes, not bytes.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if utf8.RuneCountInString(password) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// RequireUpperRule requires an upper-case letter.
func RequireUpperRule() PasswordRule {
	return classRule("upper", "an upper-case letter", unicode.IsUpper)
}

// RequireLowerRule requires a lower-case letter.
func RequireLowerRule() PasswordRule {
	return classRule("lower", "a lower-case letter", unicode.IsLower)
}

// RequireDigitRule requires a decimal digit.
func RequireDigitRule() PasswordRule {
	return classRule("digit", "a digit", unicode.IsDigit)
}

// RequireSymbolRule requires punctuation or a symbol.
func RequireSymbolRule() PasswordRule {
	return classRule("symbol", "a symbol", isSymbol)
}

func classRule(code, class string, match func(rune) bool) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if hasClass(password, match) {
			return nil
		}
		return &PasswordValidationError{
			Code:    code,
			Message: "password must include at least " + class,
		}
	})
}

func hasClass(password string, match func(rune) bool) bool {
	for _, r := range password {
		if match(r) {
			return true
		}
	}
	return false
}

func isSymbol(r rune) bool {
	return unicode.IsSymbol(r) || unicode.IsPunct(r)
}

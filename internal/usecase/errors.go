package usecase

import (
	"fmt"

	"github.com/arklim/portal-identity/internal/core/domain"
)

var (
	// ErrInvalidCredentials never reveals whether the email or the password was wrong.
	ErrInvalidCredentials = domain.NewError(domain.KindAuthentication, "InvalidCredentials", "invalid email or password")
	// ErrInvalidRefreshToken covers missing, used or expired refresh records.
	ErrInvalidRefreshToken = domain.NewError(domain.KindAuthentication, "InvalidRefreshToken", "refresh token is invalid or has been used")
	// ErrCurrentPasswordInvalid rejects a password change with a wrong current password.
	ErrCurrentPasswordInvalid = domain.NewError(domain.KindAuthentication, "InvalidCurrentPassword", "current password is incorrect")

	ErrEmailTaken      = domain.NewError(domain.KindConflict, "EmailTaken", "an account with this email already exists")
	ErrHandleTaken     = domain.NewError(domain.KindConflict, "HandleTaken", "this handle is already taken")
	ErrInvalidReferral = domain.NewError(domain.KindValidation, "InvalidReferralCode", "referral code does not exist")
	ErrWeakPassword    = domain.NewError(domain.KindValidation, "WeakPassword", "password does not meet the strength requirements")
	ErrPasswordReused  = domain.NewError(domain.KindValidation, "PasswordReused", "new password must differ from the current one")
	ErrInvalidAvatar   = domain.NewError(domain.KindValidation, "InvalidAvatarURL", "avatar url must be an absolute http or https url")

	ErrVerificationTokenInvalid = domain.NewError(domain.KindValidation, "InvalidVerificationToken", "verification token is invalid or has been used")
	ErrVerificationTokenExpired = domain.NewError(domain.KindValidation, "VerificationTokenExpired", "verification token has expired")
	ErrAlreadyVerified          = domain.NewError(domain.KindValidation, "AlreadyVerified", "email is already verified")
	ErrResetTokenInvalid        = domain.NewError(domain.KindValidation, "InvalidResetToken", "password reset token is invalid or has been used")
	ErrResetTokenExpired        = domain.NewError(domain.KindValidation, "ResetTokenExpired", "password reset token has expired")

	// ErrMailUnavailable is surfaced when an email the caller depends on could not be sent.
	ErrMailUnavailable = domain.NewError(domain.KindUnavailable, "EmailUnavailable", "email delivery is temporarily unavailable")

	ErrForbidden        = domain.NewError(domain.KindAuthorization, "Forbidden", "administrator privileges required")
	ErrSelfModification = domain.NewError(domain.KindAuthorization, "SelfModification", "administrators cannot change their own role, status or account")
	ErrInvalidRole      = domain.NewError(domain.KindValidation, "InvalidRole", "role must be user or admin")
	ErrInvalidStatus    = domain.NewError(domain.KindValidation, "InvalidStatus", "status is not recognised")
	ErrAccountMissing   = domain.NewError(domain.KindNotFound, "AccountNotFound", "account not found")

	ErrUnknownResource  = domain.NewError(domain.KindValidation, "InvalidResource", "resource is not recognised")
	ErrAccessGranted    = domain.NewError(domain.KindConflict, "AccessAlreadyGranted", "access to this resource is already granted")
	ErrRequestPending   = domain.NewError(domain.KindConflict, "RequestPending", "a request for this resource is already pending")
	ErrGrantNotFound    = domain.NewError(domain.KindNotFound, "AccessRequestNotFound", "access request not found")
	ErrGrantState       = domain.NewError(domain.KindConflict, "InvalidRequestState", "access request cannot move to the requested state")
	ErrInvalidExpiry    = domain.NewError(domain.KindValidation, "InvalidExpiry", "expiry must be in the future")
	ErrInvalidPurgeDate = domain.NewError(domain.KindValidation, "InvalidPurgeDate", "purge cutoff must be in the past")

	ErrContactNotFound = domain.NewError(domain.KindNotFound, "ContactNotFound", "contact message not found")
	ErrInvalidRange    = domain.NewError(domain.KindValidation, "InvalidRange", "analytics range is invalid or too wide")
)

func requiredField(field string) error {
	return domain.NewError(domain.KindValidation, "MissingField", field+" is required")
}

func tooLong(field string, limit int) error {
	return domain.NewError(domain.KindValidation, "FieldTooLong", fmt.Sprintf("%s must be at most %d characters", field, limit))
}

// weakPassword keeps the WeakPassword code while surfacing the violated rule.
func weakPassword(cause error) error {
	return domain.NewError(domain.KindValidation, ErrWeakPassword.Code, cause.Error())
}

// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyEmailVerificationSent  = "auth.email_verification_sent"
	KeyEmailVerified          = "auth.email_verified"

	// Users
	KeyUserNotFound  = "user.not_found"
	KeyUserSuspended = "user.suspended"
	KeyUserVerified  = "user.verified"

	// Registry
	KeyAnimalRegistered      = "animal.registered"
	KeyHealthRecordAdded     = "animal.health_record_added"
	KeyRegistrationConfirmed = "registration.confirmed"
	KeyRegistrationRejected  = "registration.rejected"

	// Verification
	KeyVerificationSubmitted = "verification.submitted"
	KeyVerificationApproved  = "verification.approved"
	KeyBondReleased          = "verification.bond_released"
	KeyEvidenceUploaded      = "verification.evidence_uploaded"

	// Credits
	KeyCreditsPurchased    = "credits.purchased"
	KeyCreditsGranted      = "credits.granted"
	KeyPurchaseUnavailable = "credits.purchase_unavailable"

	// Notifications
	KeyNotificationMarked = "notification.marked_read"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"
	KeyBondForfeited     = "admin.bond_forfeited"
	KeyUserStatusUpdated = "admin.user_status_updated"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// Rate limiting
	KeyRateLimitExceeded = "rate_limit.exceeded"
)

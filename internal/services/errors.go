// internal/services/errors.go
package services

type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindInvalidState      ErrorKind = "INVALID_STATE"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindDuplicate         ErrorKind = "DUPLICATE"
	KindValidation        ErrorKind = "VALIDATION"
	KindAnchorUnavailable ErrorKind = "ANCHOR_UNAVAILABLE"
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindNotImplemented    ErrorKind = "NOT_IMPLEMENTED"
)

// ServiceError is a failure callers are expected to branch on. Code is stable
// and doubles as the translation key suffix.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *ServiceError) Error() string     { return e.Message }
func (e *ServiceError) ErrorKind() string { return string(e.Kind) }
func (e *ServiceError) ErrorCode() string { return e.Code }

func newError(kind ErrorKind, code, message string) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: message}
}

var (
	ErrUserNotFound         = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrAnimalNotFound       = newError(KindNotFound, "ANIMAL_NOT_FOUND", "animal not found")
	ErrRegistrationNotFound = newError(KindNotFound, "REGISTRATION_NOT_FOUND", "registration not found")
	ErrRequestNotFound      = newError(KindNotFound, "REQUEST_NOT_FOUND", "verification request not found")
	ErrVerificationNotFound = newError(KindNotFound, "VERIFICATION_NOT_FOUND", "peer verification not found")
	ErrNotificationNotFound = newError(KindNotFound, "NOTIFICATION_NOT_FOUND", "notification not found")
	ErrBundleNotFound       = newError(KindNotFound, "BUNDLE_NOT_FOUND", "credit bundle not found")

	ErrForbidden        = newError(KindForbidden, "FORBIDDEN", "not permitted")
	ErrNotVerified      = newError(KindForbidden, "NOT_VERIFIED", "only verified professionals may do this")
	ErrSuspended        = newError(KindForbidden, "SUSPENDED", "account is suspended")
	ErrNotLinkedBreeder = newError(KindForbidden, "NOT_LINKED_BREEDER", "registration is linked to another professional id")
	ErrSelfVerification = newError(KindForbidden, "SELF_VERIFICATION", "cannot verify your own request")
	ErrNotBondOwner     = newError(KindForbidden, "NOT_BOND_OWNER", "only the verifier may release this bond")
	ErrEmailNotVerified = newError(KindForbidden, "EMAIL_NOT_VERIFIED", "verify your email address first")

	ErrInvalidCredentials = newError(KindUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")

	ErrAlreadyConfirmed = newError(KindInvalidState, "ALREADY_CONFIRMED", "registration already confirmed by the breeder")
	ErrDisputed         = newError(KindInvalidState, "DISPUTED", "registration is disputed")
	ErrNotPending       = newError(KindInvalidState, "NOT_PENDING", "registration is not pending")
	ErrAlreadyHandled   = newError(KindInvalidState, "ALREADY_HANDLED", "verification request already handled")
	ErrAlreadyVerified  = newError(KindInvalidState, "ALREADY_VERIFIED", "account is already verified")
	ErrNotLocked        = newError(KindInvalidState, "NOT_LOCKED", "bond is not locked")
	ErrTooEarly         = newError(KindInvalidState, "TOO_EARLY", "bond lock period has not ended")

	ErrEmailAlreadyVerified = newError(KindInvalidState, "EMAIL_ALREADY_VERIFIED", "email address is already verified")

	ErrInsufficientCredits = newError(KindInsufficientFunds, "INSUFFICIENT_CREDITS", "insufficient available credits")
	ErrInsufficientBond    = newError(KindInsufficientFunds, "INSUFFICIENT_BOND", "insufficient available credits for the verification bond")

	ErrDuplicateChip           = newError(KindDuplicate, "DUPLICATE_CHIP", "chip is already registered")
	ErrDuplicateEmail          = newError(KindDuplicate, "DUPLICATE_EMAIL", "email is already registered")
	ErrDuplicateProfessionalID = newError(KindDuplicate, "DUPLICATE_PROFESSIONAL_ID", "professional id belongs to another account")
	ErrDuplicateRequest        = newError(KindDuplicate, "DUPLICATE_REQUEST", "a verification request already exists")

	ErrInvalidChipID     = newError(KindValidation, "INVALID_CHIP_ID", "chip id is too short")
	ErrReasonRequired    = newError(KindValidation, "REASON_REQUIRED", "a reason is required")
	ErrInvalidAmount     = newError(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrInvalidRole       = newError(KindValidation, "INVALID_ROLE", "role is not allowed here")
	ErrInvalidStatus     = newError(KindValidation, "INVALID_STATUS", "status is not allowed here")
	ErrInvalidRecordType = newError(KindValidation, "INVALID_RECORD_TYPE", "unknown health record type")
	ErrMissingBreeder    = newError(KindValidation, "MISSING_BREEDER", "breeder professional id is required")
	ErrInvalidEmailToken = newError(KindValidation, "INVALID_EMAIL_TOKEN", "invalid or expired email verification token")

	ErrAnchorUnavailable   = newError(KindAnchorUnavailable, "ANCHOR_UNAVAILABLE", "anchoring service unavailable")
	ErrPurchaseUnavailable = newError(KindNotImplemented, "PURCHASE_UNAVAILABLE", "credit purchase is not available")
)

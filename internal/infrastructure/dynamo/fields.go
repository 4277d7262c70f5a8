package dynamo

// DynamoDB attribute names used in key, update and condition expressions.
const (
	fieldUserID    = "user_id"
	fieldOtpID     = "otp_id"
	fieldEmail     = "email"
	fieldCode      = "code"
	fieldUsed      = "used"
	fieldExpiresAt = "expires_at"

	emailIndex = "email-index"
)

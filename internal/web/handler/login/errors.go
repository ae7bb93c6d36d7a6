package login

// Messages of the login api.
const (
	MsgCredentialsRequired = "Email and password are required"
	MsgInvalidCredentials  = "Invalid credentials"
	MsgTokenMissing        = "Token response missing"
	MsgTimeout             = "Auth request timed out"
	MsgAuthError           = "Auth error"
	MsgExpiredNotice       = "Your session has expired. Please sign in again."
)

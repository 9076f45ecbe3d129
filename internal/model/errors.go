package model

import "errors"

// ErrNotFound is returned by stores when the requested entity does not
// exist. Services translate it into the appropriate wire code.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by stores on conflicting creates.
var ErrAlreadyExists = errors.New("already exists")

// Code is a wire-level error code from the protocol taxonomy.
// Every failure crossing the transport boundary is one of these;
// internal errors are mapped before serialization and never leak.
type Code string

const (
	CodeInvalidAction        Code = "INVALID_ACTION"
	CodeWrongSecret          Code = "WRONG_SECRET"
	CodeUserNotFound         Code = "USER_NOT_FOUND"
	CodeBlobNotFound         Code = "BLOB_NOT_FOUND"
	CodeBlobNotInShare       Code = "BLOB_IS_NOT_IN_SHARE"
	CodeNoWriteAccess        Code = "NO_WRITE_ACCESS"
	CodeRemoteError          Code = "REMOTE_ERROR"
	CodeInvalidJSON          Code = "INVALID_JSON"
	CodeQuotaExceeded        Code = "QUOTA_EXCEEDED"
	CodeBlobHashNotMatch     Code = "BLOB_HASH_NOT_MATCH"
	CodeShareNotFound        Code = "SHARE_NOT_FOUND"
	CodeInvalidCredentials   Code = "INVALID_CREDENTIALS"
	CodeInvalidSession       Code = "INVALID_SESSION"
	CodeRegistrationDisabled Code = "REGISTRATION_DISABLED"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeInternalError        Code = "INTERNAL_ERROR"
)

// Error implements the error interface so codes can travel through
// regular error returns and be recovered with errors.As.
func (c Code) Error() string {
	return string(c)
}

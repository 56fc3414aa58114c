/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Conversation and Message Business Logic Errors
const (
	// ErrConversationNotFound indicates that the referenced conversation does not exist.
	ErrConversationNotFound = 2101

	// ErrConversationTypeInvalid indicates an operation that only applies to the other conversation type.
	ErrConversationTypeInvalid = 2102

	// ErrNotAdmin indicates that a non-admin attempted an admin-only group action.
	ErrNotAdmin = 2103

	// ErrMessageNotFound indicates that the referenced message does not exist.
	ErrMessageNotFound = 2201

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202

	// ErrNotMessageSender indicates that a user other than the original sender attempted to edit or delete a message.
	ErrNotMessageSender = 2203

	// ErrFileSizeTooLarge indicates that an attachment exceeded the maximum allowed size.
	ErrFileSizeTooLarge = 2301

	// ErrFileTypeInvalid indicates that an attachment's name or MIME type is not allowed.
	ErrFileTypeInvalid = 2302
)

// 3xxx: Session and Security Errors
const (
	// ErrUnauthorized indicates a missing, invalid, or expired credential.
	ErrUnauthorized = 3101

	// ErrForbidden indicates that the payload's actor id does not match the connection's bound identity.
	ErrForbidden = 3102
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStoreFailure indicates that a backing store operation failed.
	ErrStoreFailure = 5001

	// ErrFileStorageFailed indicates that a blob storage operation failed.
	ErrFileStorageFailed = 5002
)

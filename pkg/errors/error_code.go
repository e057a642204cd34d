package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidRobot         ErrorCode = 102
	ErrCodeInvalidPriceBand     ErrorCode = 103
	ErrCodeInvalidOrder         ErrorCode = 104
	ErrCodeRobotEnabled         ErrorCode = 105
	ErrCodeRobotRemoved         ErrorCode = 106
	ErrCodeMissingParameter     ErrorCode = 107
	ErrCodeInvalidVersion       ErrorCode = 108
	ErrCodeInvalidResolution    ErrorCode = 109

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound       ErrorCode = 200
	ErrCodeRobotNotFound      ErrorCode = 201
	ErrCodeOrderNotFound      ErrorCode = 202
	ErrCodeOperationNotFound  ErrorCode = 203
	ErrCodeQueryFailed        ErrorCode = 204
	ErrCodeStoreUnavailable   ErrorCode = 205
	ErrCodeRunStateNotFound   ErrorCode = 206
	ErrCodeJournalWriteFailed ErrorCode = 207

	// Subscription errors (300-399)
	ErrCodeInstrumentNotFound ErrorCode = 300
	ErrCodeStreamOpenFailed   ErrorCode = 301
	ErrCodeHubClosed          ErrorCode = 302

	// Trading errors (500-599)
	ErrCodeOrderFailed       ErrorCode = 500
	ErrCodeCancelFailed      ErrorCode = 501
	ErrCodeBrokerUnavailable ErrorCode = 502

	// Market data errors (700-799)
	ErrCodeMarketDataParseFailed ErrorCode = 700

	// Callback errors (800-899)
	ErrCodeCallbackFailed     ErrorCode = 800
	ErrCodeNotificationFailed ErrorCode = 801
)

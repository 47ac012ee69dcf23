package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidCashPlan      ErrorCode = 102
	ErrCodeInvalidCostModel     ErrorCode = 103
	ErrCodeInvalidSpace         ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodePriceHistoryTooShort  ErrorCode = 203

	// Strategy errors (300-399)
	ErrCodeNoUsableSignal     ErrorCode = 300
	ErrCodeStrategyParamCount ErrorCode = 301
	ErrCodeUnknownStrategy    ErrorCode = 302

	// Backtest errors (400-499)
	ErrCodeEmptySignalTable   ErrorCode = 400
	ErrCodeCashDateNotTrading ErrorCode = 401
	ErrCodeMissingCostModel   ErrorCode = 402
	ErrCodeSymbolMismatch     ErrorCode = 403

	// Optimization errors (500-599)
	ErrCodeEmptySearchSpace   ErrorCode = 500
	ErrCodeUnknownSearcher    ErrorCode = 501
	ErrCodeUnknownObjective   ErrorCode = 502
	ErrCodeEvaluationFailed   ErrorCode = 503
	ErrCodeInvalidReduceRatio ErrorCode = 504
)

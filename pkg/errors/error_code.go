package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

// ErrorClass groups codes by the hundreds digit.
type ErrorClass int

const (
	ClassGeneral       ErrorClass = 0
	ClassConfiguration ErrorClass = 1
	ClassData          ErrorClass = 2
	ClassStrategy      ErrorClass = 4
	ClassBacktest      ErrorClass = 6
	ClassCallback      ErrorClass = 8
)

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 105
	ErrCodeInvalidPeriod        ErrorCode = 108
	ErrCodeMissingParameter     ErrorCode = 109
	ErrCodeInvalidVersion       ErrorCode = 110
	ErrCodeInvalidThreshold     ErrorCode = 112
	ErrCodeInvalidWindow        ErrorCode = 120
	ErrCodeInvalidCostModel     ErrorCode = 121
	ErrCodeInvalidInstrument    ErrorCode = 122
	ErrCodeInvalidParameterGrid ErrorCode = 123

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeNoDataFound           ErrorCode = 204
	ErrCodeMalformedEvent        ErrorCode = 206
	ErrCodeUnsupportedSchema     ErrorCode = 207

	// Strategy errors (400-499)
	ErrCodeStrategyConfigError ErrorCode = 401
	ErrCodeUnsupportedStrategy ErrorCode = 403
	ErrCodeVersionMismatch     ErrorCode = 404

	// Backtest errors (600-699)
	ErrCodeBacktestInitFailed   ErrorCode = 601
	ErrCodeBacktestConfigError  ErrorCode = 602
	ErrCodeBacktestNoDatasource ErrorCode = 608
	ErrCodeBacktestNoParameters ErrorCode = 609
	ErrCodeResultWriteFailed    ErrorCode = 610
	ErrCodeNonFiniteResult      ErrorCode = 611

	// Callback errors (800-899)
	ErrCodeCallbackFailed ErrorCode = 800
)

// Class returns the failure class a code belongs to.
func (c ErrorCode) Class() ErrorClass {
	return ErrorClass(int(c) / 100)
}

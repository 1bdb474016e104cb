package core

// Error codes shared by the coaching pipeline.
const (
	CodeLLMTransient      = "LLM_TRANSIENT"
	CodeLLMGeneration     = "LLM_GENERATION"
	CodeProtocolViolation = "PROTOCOL_VIOLATION"
	CodeLoopExhausted     = "LOOP_EXHAUSTED"
	CodeExtractionFailed  = "EXTRACTION_FAILED"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeToolNotFound      = "TOOL_NOT_FOUND"
	CodeToolExecution     = "TOOL_EXECUTION"
	CodeToolInvalidInput  = "TOOL_INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeStoreFailure      = "STORE_FAILURE"
	CodeInvalidRequest    = "INVALID_REQUEST"
)

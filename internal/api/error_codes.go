// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 会话相关错误
	ErrorSessionMissing       = "SESSION_MISSING"
	ErrorGenerationInProgress = "GENERATION_IN_PROGRESS"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorAPIKeyMissing         = "API_KEY_MISSING"
	ErrorUpstreamFailed        = "UPSTREAM_ERROR"

	// 导出相关错误
	ErrorExportFailed    = "EXPORT_FAILED"
	ErrorExportDataEmpty = "EXPORT_DATA_EMPTY"
)

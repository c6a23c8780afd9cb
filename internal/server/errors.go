package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	assetdomain "github.com/smallbiznis/lubeqc/internal/asset/domain"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	inspectiondomain "github.com/smallbiznis/lubeqc/internal/inspection/domain"
	kvdomain "github.com/smallbiznis/lubeqc/internal/kv/domain"
	reportdomain "github.com/smallbiznis/lubeqc/internal/report/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindError turns a request binding failure into field errors.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalidRequestError()
	}
	out := &ValidationErrors{}
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Code:    "invalid_" + field,
			Message: fe.Tag(),
		})
	}
	return out
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reports the response type and code for request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status == http.StatusBadRequest && len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrs = []error{
	ErrInvalidRequest,
	consumptiondomain.ErrInvalidID,
	consumptiondomain.ErrInvalidWorkOrder,
	consumptiondomain.ErrInvalidAsset,
	consumptiondomain.ErrInvalidLubricantType,
	consumptiondomain.ErrInvalidAmount,
	consumptiondomain.ErrInvalidUnit,
	consumptiondomain.ErrInvalidTimestamp,
	consumptiondomain.ErrUnitMismatch,
	consumptiondomain.ErrNoValidRows,
	consumptiondomain.ErrInvalidCSV,
	catalog.ErrInvalidFamily,
	reportdomain.ErrInvalidPeriod,
	reportdomain.ErrInvalidGroupBy,
	assetdomain.ErrInvalidAsset,
	assetdomain.ErrInvalidPhoto,
	kvdomain.ErrInvalidKey,
	inspectiondomain.ErrInvalidWorkOrder,
	inspectiondomain.ErrInvalidAsset,
	inspectiondomain.ErrInvalidAmount,
	inspectiondomain.ErrInvalidComments,
	inspectiondomain.ErrInvalidInspector,
	inspectiondomain.ErrInvalidExecDate,
	inspectiondomain.ErrInvalidExecTime,
	inspectiondomain.ErrRouteLocked,
	inspectiondomain.ErrInvalidDraft,
}

func isValidationError(err error) bool {
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return true
		}
	}
	for q := 1; q <= len(inspectiondomain.Questions); q++ {
		if errors.Is(err, inspectiondomain.QuestionError(q)) {
			return true
		}
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, consumptiondomain.ErrNotFound),
		errors.Is(err, inspectiondomain.ErrNoRecentSubmission),
		errors.Is(err, assetdomain.ErrImageNotFound),
		errors.Is(err, kvdomain.ErrNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	for q := 1; q <= len(inspectiondomain.Questions); q++ {
		if target := inspectiondomain.QuestionError(q); errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	if msg, ok := inspectiondomain.Message(code); ok {
		return msg
	}
	switch code {
	case "invalid_request":
		return "invalid request"
	case consumptiondomain.ErrNoValidRows.Error():
		return "No valid rows found in the file."
	case consumptiondomain.ErrUnitMismatch.Error():
		return "unit does not match the lubricant family"
	default:
		return "invalid value"
	}
}

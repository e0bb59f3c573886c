package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	changeorderdomain "github.com/smallbiznis/jobledger/internal/changeorder/domain"
	estimatedomain "github.com/smallbiznis/jobledger/internal/estimate/domain"
	expensedomain "github.com/smallbiznis/jobledger/internal/expense/domain"
	financedomain "github.com/smallbiznis/jobledger/internal/finance/domain"
	payeedomain "github.com/smallbiznis/jobledger/internal/payee/domain"
	projectdomain "github.com/smallbiznis/jobledger/internal/project/domain"
	quotedomain "github.com/smallbiznis/jobledger/internal/quote/domain"
	"gorm.io/gorm"
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
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, projectdomain.ErrInvalidStatus),
		errors.Is(err, projectdomain.ErrInvalidTransition),
		errors.Is(err, payeedomain.ErrInvalidPayeeType),
		errors.Is(err, payeedomain.ErrInvalidPayeeName),
		errors.Is(err, estimatedomain.ErrInvalidCategory),
		errors.Is(err, estimatedomain.ErrInvalidStatus),
		errors.Is(err, estimatedomain.ErrInvalidTransition),
		errors.Is(err, estimatedomain.ErrNoLineItems),
		errors.Is(err, estimatedomain.ErrNegativeContingency),
		errors.Is(err, quotedomain.ErrInvalidStatus),
		errors.Is(err, quotedomain.ErrInvalidTransition),
		errors.Is(err, quotedomain.ErrNoLineItems),
		errors.Is(err, changeorderdomain.ErrInvalidStatus),
		errors.Is(err, changeorderdomain.ErrInvalidTransition),
		errors.Is(err, expensedomain.ErrInvalidAmount),
		errors.Is(err, expensedomain.ErrInvalidTransition),
		errors.Is(err, expensedomain.ErrSplitAmountMismatch),
		errors.Is(err, expensedomain.ErrSplitPercentMismatch),
		errors.Is(err, expensedomain.ErrSplitRequiresProjects):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, projectdomain.ErrDuplicateNumber),
		errors.Is(err, estimatedomain.ErrNotLatestVersion),
		errors.Is(err, estimatedomain.ErrDuplicateCurrent),
		errors.Is(err, quotedomain.ErrQuoteScopeConflict):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, projectdomain.ErrProjectNotFound),
		errors.Is(err, financedomain.ErrProjectNotFound),
		errors.Is(err, payeedomain.ErrPayeeNotFound),
		errors.Is(err, estimatedomain.ErrEstimateNotFound),
		errors.Is(err, quotedomain.ErrQuoteNotFound),
		errors.Is(err, changeorderdomain.ErrChangeOrderNotFound),
		errors.Is(err, expensedomain.ErrExpenseNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

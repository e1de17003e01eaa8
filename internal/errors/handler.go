package errors

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// ErrorHandler renders application errors as problem responses and logs
// server-side failures with the request context.
type ErrorHandler struct {
	logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger}
}

// HandleError writes the problem response for err. 5xx problems are logged
// at error level, everything else at debug.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	p := ErrorToProblem(err, r)

	if p.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.Int("status", p.Status),
			slog.String("error", err.Error()),
		)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", p.Status),
			slog.String("error", err.Error()),
		)
	}

	if renderErr := render.Render(w, r, p); renderErr != nil {
		h.logger.ErrorContext(r.Context(), "failed to render problem response",
			slog.String("error", renderErr.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// NotFound is the router's fallback handler for unknown routes.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	p := NewProblemDetails(http.StatusNotFound, "not-found", "Resource Not Found",
		"the requested endpoint does not exist").WithInstance(r.URL.Path)
	_ = render.Render(w, r, p)
}

// MethodNotAllowed is the router's fallback for known routes with a wrong
// method.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	p := NewProblemDetails(http.StatusMethodNotAllowed, "method-not-allowed", "Method Not Allowed",
		"the method is not allowed on this endpoint").
		WithInstance(r.URL.Path).
		WithExtension("method", r.Method)
	_ = render.Render(w, r, p)
}

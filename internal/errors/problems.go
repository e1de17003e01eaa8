package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails is an RFC 7807 problem response. Extensions are merged
// into the top-level JSON object alongside the standard members.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// NewProblemDetails builds a problem with the given status, type URI tail,
// title and detail.
func NewProblemDetails(status int, problemType, title, detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   "https://licenseforge.dev/problems/" + problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WithExtension adds a custom member to the problem object.
func (p *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if p.Extensions == nil {
		p.Extensions = make(map[string]interface{})
	}
	p.Extensions[key] = value
	return p
}

// WithInstance sets the instance URI, normally the request path.
func (p *ProblemDetails) WithInstance(instance string) *ProblemDetails {
	p.Instance = instance
	return p
}

// Render implements render.Renderer.
func (p *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/problem+json")
	render.Status(r, p.Status)
	return nil
}

// MarshalJSON flattens the extension members into the problem object.
func (p *ProblemDetails) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		out["detail"] = p.Detail
	}
	if p.Instance != "" {
		out["instance"] = p.Instance
	}
	for k, v := range p.Extensions {
		out[k] = v
	}
	return json.Marshal(out)
}

// ErrorToProblem maps an application error onto a problem response. The
// request path becomes the instance URI and AppError context becomes
// extension members.
func ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var p *ProblemDetails

	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrTypeNotFound:
			p = NewProblemDetails(http.StatusNotFound, "not-found", "Resource Not Found", appErr.Message)
		case ErrTypeValidation:
			p = NewProblemDetails(http.StatusBadRequest, "validation", "Validation Failed", appErr.Message)
		case ErrTypeConflict:
			p = NewProblemDetails(http.StatusConflict, "conflict", "Conflict", appErr.Message)
		case ErrTypeActivation:
			p = NewProblemDetails(http.StatusBadRequest, "activation", "Activation Denied", appErr.Message)
		case ErrTypeStorage:
			p = NewProblemDetails(http.StatusInternalServerError, "storage", "Storage Failure", "a storage error occurred")
		default:
			p = NewProblemDetails(http.StatusInternalServerError, "internal", "Internal Server Error", "an unexpected error occurred")
		}
		for k, v := range appErr.Context {
			p.WithExtension(k, v)
		}
	} else {
		p = NewProblemDetails(http.StatusInternalServerError, "internal", "Internal Server Error", "an unexpected error occurred")
	}

	if r != nil {
		p.WithInstance(r.URL.Path)
	}
	return p
}

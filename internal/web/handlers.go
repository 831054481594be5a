package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"textbridge/internal/bridge"
)

const blankTextNotice = "Please enter some text!"

//nolint:gochecknoglobals // Validator caches struct metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

type pageData struct {
	Endpoint  string
	Text      string
	Notice    string
	Submitted bool
	Output    template.HTML
	Failure   *failureView
}

type failureView struct {
	Kind    string
	Message string
}

type sendRequest struct {
	Text *string `json:"text" validate:"required"`
}

type sendResponse struct {
	Body string `json:"body"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageData{Endpoint: h.endpoint})
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pageData{
			Endpoint: h.endpoint,
			Notice:   "Form could not be read.",
		})
		return
	}

	text := r.PostForm.Get("text")
	data := pageData{Endpoint: h.endpoint, Text: text}

	if strings.TrimSpace(text) == "" {
		data.Notice = blankTextNotice
		h.render(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	data.Submitted = true

	body, err := h.sender.Send(r.Context(), text)
	if err != nil {
		h.logSendFailure(r, err, len(text))

		data.Failure = &failureView{Kind: bridge.OutcomeLabel(err), Message: err.Error()}
		h.render(w, r, statusForSendError(err), data)
		return
	}

	data.Output = h.links.HTML(body)
	h.render(w, r, http.StatusOK, data)
}

func (h *handler) apiSend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req sendRequest
	if err := decoder.Decode(&req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: errorDetail{
			Kind:    "invalid_request",
			Message: "invalid request body: " + err.Error(),
		}})
		return
	}

	if err := validate.Struct(req); err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: errorDetail{
			Kind:    "invalid_request",
			Message: validationMessage(err),
		}})
		return
	}

	body, err := h.sender.Send(r.Context(), *req.Text)
	if err != nil {
		h.logSendFailure(r, err, len(*req.Text))

		h.writeJSON(w, r, statusForSendError(err), errorResponse{Error: errorDetail{
			Kind:    bridge.OutcomeLabel(err),
			Message: err.Error(),
			Status:  bridge.StatusCodeOf(err),
		}})
		return
	}

	h.writeJSON(w, r, http.StatusOK, sendResponse{Body: body})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := h.page.Execute(w, data); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to render page",
			"error", err,
			"path", r.URL.Path,
			"requestID", middleware.GetReqID(r.Context()))
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to write response",
			"error", err,
			"path", r.URL.Path,
			"requestID", middleware.GetReqID(r.Context()))
	}
}

func (h *handler) logSendFailure(r *http.Request, err error, inputBytes int) {
	h.log.WarnContext(r.Context(), "Failed to forward text",
		"error", err,
		"outcome", bridge.OutcomeLabel(err),
		"path", r.URL.Path,
		"inputBytes", inputBytes,
		"requestID", middleware.GetReqID(r.Context()))
}

func statusForSendError(err error) int {
	if errors.Is(err, bridge.ErrCanceled) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return "validation failed"
	}

	msgs := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		switch fieldErr.Tag() {
		case "required":
			msgs = append(msgs, fieldErr.Field()+" is required")
		default:
			msgs = append(msgs, fieldErr.Field()+" is invalid")
		}
	}

	return strings.Join(msgs, "; ")
}

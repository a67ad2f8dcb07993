package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bz888/roichat/internal/agent"
	"github.com/bz888/roichat/internal/api/server/client"
	"github.com/bz888/roichat/internal/logger"
	"github.com/bz888/roichat/internal/report"
	"github.com/bz888/roichat/internal/roi"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Chatter answers a conversation turn.
type Chatter interface {
	HandleChat(ctx context.Context, messages []client.Message) (agent.Response, error)
}

type Handler struct {
	chatter   Chatter
	engine    *roi.Engine
	providers []client.Provider
	log       *logger.Logger
}

func NewHandler(chatter Chatter, engine *roi.Engine, providers ...client.Provider) *Handler {
	return &Handler{
		chatter:   chatter,
		engine:    engine,
		providers: providers,
		log:       logger.NewLogger("handlers"),
	}
}

type ChatRequest struct {
	Messages []client.Message `json:"messages"`
}

type ReportResponse struct {
	PDFBase64 string     `json:"pdf_base64"`
	Filename  string     `json:"filename"`
	Metrics   roi.Result `json:"metrics"`
}

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ChatHandler runs one agent turn over the full transcript sent by the client.
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_REQUEST", "messages must not be empty", r))
		return
	}
	for i, m := range req.Messages {
		if m.Role != client.RoleUser && m.Role != client.RoleAssistant {
			writeJSON(w, http.StatusBadRequest, errorResp("INVALID_REQUEST",
				"message "+strconv.Itoa(i)+" has unsupported role "+strings.TrimSpace(m.Role), r))
			return
		}
	}

	h.log.Info("chat turn with ", len(req.Messages), " messages, session ", r.Header.Get("X-Session-ID"))
	resp, err := h.chatter.HandleChat(r.Context(), req.Messages)
	if err != nil {
		h.log.Error("chat failed: ", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to process chat", r))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ROIHandler runs the model on a complete input without involving the LLM.
func (h *Handler) ROIHandler(w http.ResponseWriter, r *http.Request) {
	in, res, ok := h.run(w, r)
	if !ok {
		return
	}
	h.log.Info("roi computed for ", in.CompanyName)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	in, res, ok := h.run(w, r)
	if !ok {
		return
	}
	rep, err := report.Generate(in, res)
	if err != nil {
		h.log.Error("report failed: ", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to render report", r))
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{PDFBase64: rep.PDFBase64, Filename: rep.Filename, Metrics: res})
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) (roi.Input, roi.Result, bool) {
	var in roi.Input
	if !decode(w, r, &in) {
		return in, roi.Result{}, false
	}
	res, err := h.engine.Run(in)
	if err != nil {
		var verr *roi.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorRespWithFields("VALIDATION_ERROR", "Validation failed", verr.Fields, r))
			return in, roi.Result{}, false
		}
		h.log.Error("roi failed: ", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to run model", r))
		return in, roi.Result{}, false
	}
	return in, res, true
}

// ModelHandler lists the models of every configured provider. A provider that
// fails is logged and skipped.
func (h *Handler) ModelHandler(w http.ResponseWriter, r *http.Request) {
	var wg sync.WaitGroup
	modelsChan := make(chan []string, len(h.providers))
	errChan := make(chan error, len(h.providers))

	for _, p := range h.providers {
		wg.Add(1)
		go func(p client.Provider) {
			defer wg.Done()
			models, err := p.GetModels(r.Context())
			if err != nil {
				h.log.Warn("listing ", p.Name(), " models failed: ", err)
				errChan <- err
				return
			}
			modelsChan <- models
		}(p)
	}

	wg.Wait()
	close(modelsChan)
	close(errChan)

	models := make([]string, 0)
	for modelList := range modelsChan {
		models = append(models, modelList...)
	}
	if len(models) == 0 && len(errChan) > 0 {
		writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", (<-errChan).Error(), r))
		return
	}
	sort.Strings(models)
	writeJSON(w, http.StatusOK, models)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_JSON", "Invalid request body", r))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) ErrorResponse {
	return errorRespWithFields(code, message, nil, r)
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) ErrorResponse {
	return ErrorResponse{
		Error: APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"time"

	"pizzeria-platform/internal/auth"
	"pizzeria-platform/internal/logger"
	"pizzeria-platform/internal/models"
)

// Handler handles HTTP requests for the order service.
type Handler struct {
	service  *Service
	verifier *auth.Verifier
	logger   *logger.Logger
}

// NewHandler creates a new order handler.
func NewHandler(service *Service, verifier *auth.Verifier, log *logger.Logger) *Handler {
	return &Handler{
		service:  service,
		verifier: verifier,
		logger:   log,
	}
}

// SetupRoutes sets up the HTTP routes.
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", h.withLogging(h.withAuth(h.PlaceOrder)))
	mux.HandleFunc("GET /health", h.withLogging(h.HealthCheck))
	return mux
}

// PlaceOrder handles POST /orders requests, both creation and staff edits.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		h.writeError(w, errValidation("Content-Type must be application/json"), requestID)
		return
	}

	var req models.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("validation_failed", "Failed to parse request body", requestID, err, nil)
		h.writeError(w, errValidation("invalid JSON body"), requestID)
		return
	}

	caller, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	resp, err := h.service.PlaceOrder(ctx, caller, &req, requestID)
	if err != nil {
		svcErr, ok := AsError(err)
		if !ok {
			svcErr = errOrder(err)
		}
		if svcErr.Status >= http.StatusInternalServerError {
			h.logger.Error("order_failed", "Failed to process order", requestID, err, nil)
		} else {
			h.logger.Debug("order_rejected", svcErr.Message, requestID, map[string]interface{}{
				"code": svcErr.Code,
			})
		}
		h.writeError(w, svcErr, requestID)
		return
	}

	h.logger.Info("order_processed", "Order processed successfully", requestID, map[string]interface{}{
		"order_id":     resp.OrderID.String(),
		"order_number": resp.OrderNumber,
		"total":        resp.Total,
	})

	h.writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health requests.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "order-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", "", err, nil)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, svcErr *Error, requestID string) {
	resp := models.ErrorResponse{
		Success:   false,
		Code:      svcErr.Code,
		Message:   svcErr.Message,
		RequestID: requestID,
	}

	if svcErr.Code == CodeRateLimitExceeded {
		seconds := int64(svcErr.RetryAfter.Round(time.Second).Seconds())
		resetAt := svcErr.ResetAt
		resp.RetryAfterSeconds = &seconds
		resp.ResetAt = &resetAt
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	h.writeJSON(w, svcErr.Status, resp)
}

// withAuth authenticates the caller and stores the identity in the context.
func (h *Handler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.verifier.ParseAuthorization(r.Header.Get("Authorization"))
		if err != nil {
			h.writeError(w, errAuth(err), requestIDFrom(r.Context()))
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	}
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withLogging adds request logging middleware.
func (h *Handler) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()

		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

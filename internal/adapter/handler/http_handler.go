package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rl1809/med-provenance/internal/auth"
	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/core/service"
	"github.com/rl1809/med-provenance/internal/platform/logger"
)

type Registrar interface {
	Connect(ctx context.Context, sess *service.Session) error
	Register(ctx context.Context, sess *service.Session, fields domain.ProductFields) (*domain.VerifiedRecord, error)
}

type Verifier interface {
	Lookup(ctx context.Context, identifier uint64) (*domain.VerifiedRecord, error)
	LookupURL(ctx context.Context, rawURL string) (*domain.VerifiedRecord, error)
}

type MirrorWriter interface {
	Store(ctx context.Context, record domain.ProductRecord) error
}

type TokenIssuer interface {
	Issue(op auth.Operator) (string, time.Time, error)
}

type HTTPHandler struct {
	registrar   Registrar
	verifier    Verifier
	mirror      MirrorWriter
	credentials auth.CredentialVerifier
	issuer      TokenIssuer
	logger      *slog.Logger
}

type ProductRequest struct {
	Name           string `json:"name"`
	ProductionDate string `json:"productionDate"`
	ExpiryDate     string `json:"expiryDate"`
	MedicalInfo    string `json:"medicalInfo"`
}

type AddProductRequest struct {
	ProductID *uint64 `json:"productId"`
	ProductRequest
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ProductResponse struct {
	ProductID      uint64    `json:"productId"`
	Name           string    `json:"name"`
	ProductionDate string    `json:"productionDate"`
	ExpiryDate     string    `json:"expiryDate"`
	MedicalInfo    string    `json:"medicalInfo"`
	Owner          string    `json:"owner,omitempty"`
	AddedAt        time.Time `json:"addedAt"`
}

type APIResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message,omitempty"`
	Product   *ProductResponse `json:"product,omitempty"`
	VerifyURL string           `json:"verifyUrl,omitempty"`
	Token     []byte           `json:"token,omitempty"`
	State     string           `json:"state,omitempty"`
}

type LoginResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func NewHTTPHandler(registrar Registrar, verifier Verifier, mirror MirrorWriter, credentials auth.CredentialVerifier, issuer TokenIssuer, l *slog.Logger) *HTTPHandler {
	if l == nil {
		l = logger.Discard()
	}
	return &HTTPHandler{
		registrar:   registrar,
		verifier:    verifier,
		mirror:      mirror,
		credentials: credentials,
		issuer:      issuer,
		logger:      l,
	}
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, LoginResponse{Message: "invalid request body"})
		return
	}

	op, err := h.credentials.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(r.Context(), "operator login rejected", "username", req.Username)
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Message: "invalid credentials"})
		return
	}

	token, expiresAt, err := h.issuer.Issue(op)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "issue operator token failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, LoginResponse{Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token, ExpiresAt: expiresAt})
}

// Register runs a full registration: wallet connect, ledger submission,
// confirmation, mirror write and token generation.
func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "invalid request body"})
		return
	}

	ctx := r.Context()
	sess := service.NewSession()
	if err := h.registrar.Connect(ctx, sess); err != nil {
		h.writeError(w, r, err, sess)
		return
	}

	result, err := h.registrar.Register(ctx, sess, req.fields())
	if err != nil {
		h.writeError(w, r, err, sess)
		return
	}

	writeJSON(w, http.StatusCreated, APIResponse{
		Success:   true,
		Message:   "product registered",
		Product:   toProductResponse(result.Record),
		VerifyURL: result.VerifyURL,
		Token:     result.Token,
		State:     string(sess.State),
	})
}

// AddProduct writes a record to the mirror without touching the ledger.
func (h *HTTPHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req AddProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "invalid request body"})
		return
	}
	if req.ProductID == nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "productId is required"})
		return
	}

	record := domain.ProductRecord{Identifier: *req.ProductID, ProductFields: req.fields()}
	if err := h.mirror.Store(r.Context(), record); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "product stored"})
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.verifier.Lookup(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Product: toProductResponse(result.Record)})
}

// Verify is the landing endpoint for a scanned verification token.
func (h *HTTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := h.verifier.LookupURL(r.Context(), r.URL.String())
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success:   true,
		Product:   toProductResponse(result.Record),
		VerifyURL: result.VerifyURL,
	})
}

// Token serves the PNG verification token of a mirrored record.
func (h *HTTPHandler) Token(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.verifier.Lookup(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Token)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Token)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error, sess *service.Session) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	resp := APIResponse{Message: message}
	if sess != nil {
		resp.State = string(sess.State)
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation error"
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest, "invalid verification token"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, domain.ErrWalletUnavailable):
		return http.StatusServiceUnavailable, "wallet unavailable"
	case errors.Is(err, domain.ErrSubmissionRejected):
		return http.StatusBadGateway, "ledger rejected the submission"
	case errors.Is(err, domain.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout, "ledger confirmation timed out"
	case errors.Is(err, domain.ErrMirrorWriteFailure):
		return http.StatusInternalServerError, "mirror write failed"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid registration state"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func productIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := r.URL.Query().Get("productId")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "productId is required"})
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, APIResponse{Message: "productId must be a non-negative integer"})
		return 0, false
	}
	return id, true
}

func (p ProductRequest) fields() domain.ProductFields {
	return domain.ProductFields{
		Name:           p.Name,
		ProductionDate: p.ProductionDate,
		ExpiryDate:     p.ExpiryDate,
		MedicalInfo:    p.MedicalInfo,
	}
}

func toProductResponse(rec domain.ProductRecord) *ProductResponse {
	return &ProductResponse{
		ProductID:      rec.Identifier,
		Name:           rec.Name,
		ProductionDate: rec.ProductionDate,
		ExpiryDate:     rec.ExpiryDate,
		MedicalInfo:    rec.MedicalInfo,
		Owner:          rec.Owner,
		AddedAt:        rec.AddedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

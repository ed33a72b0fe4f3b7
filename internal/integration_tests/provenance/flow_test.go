package provenance

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/med-provenance/internal/adapter/handler"
	"github.com/rl1809/med-provenance/internal/adapter/token"
	"github.com/rl1809/med-provenance/internal/auth"
	"github.com/rl1809/med-provenance/internal/core/service"
	"github.com/rl1809/med-provenance/internal/port"
)

const (
	testOrigin   = "https://verify.example.com"
	testPassword = "correct horse battery staple"
)

type stack struct {
	chain      *fakeChain
	mirror     *flakyMirror
	reconciler *service.Reconciler
	server     http.Handler
	token      string
}

// newStack wires the real services, codec and HTTP router around mirror and
// cache. Identifiers start at a random base so runs against a shared
// database do not see each other's rows.
func newStack(t *testing.T, mirror port.MirrorRepository, cache port.CacheRepository) *stack {
	t.Helper()

	chain := newFakeChain(uint64(uuid.New().ID()) << 8)
	flaky := &flakyMirror{MirrorRepository: mirror}
	codec := token.NewQRCodec(256)

	registration := service.NewRegistrationService(chain, chain, flaky, codec, testOrigin)
	queryOpts := []service.QueryOption{}
	if cache != nil {
		queryOpts = append(queryOpts, service.WithCache(cache))
	}
	query := service.NewQueryService(flaky, codec, testOrigin, queryOpts...)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	issuer := auth.NewTokenIssuer("integration-secret-integration-secret", time.Hour)
	h := handler.NewHTTPHandler(registration, query, service.NewMirrorService(flaky, nil),
		auth.NewStaticVerifier("admin", string(hash)), issuer, nil)

	s := &stack{
		chain:  chain,
		mirror: flaky,
		reconciler: service.NewReconciler(chain, flaky, service.ReconcilerConfig{
			StartBlock: chain.block,
			Cache:      cache,
		}),
		server: handler.NewRouter(h, issuer.RequireOperator, nil),
	}
	s.token = s.login(t)
	return s
}

func (s *stack) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *stack) login(t *testing.T) string {
	rec := s.do(t, http.MethodPost, "/api/login", handler.LoginRequest{Username: "admin", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handler.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func scan(t *testing.T, pngBytes []byte) string {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	require.NoError(t, err)
	result, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	require.NoError(t, err)
	return result.GetText()
}

var vaccine = handler.ProductRequest{
	Name:           "VaccineA",
	ProductionDate: "2024-01-01",
	ExpiryDate:     "2025-01-01",
	MedicalInfo:    "Store at 2-8C",
}

// runRegistrationScenarios exercises register, lookup, scan and the
// partial-failure recovery path against one mirror/cache pair.
func runRegistrationScenarios(t *testing.T, mirror port.MirrorRepository, cache port.CacheRepository) {
	t.Run("register then verify by scanned token", func(t *testing.T) {
		s := newStack(t, mirror, cache)

		rec := s.do(t, http.MethodPost, "/api/register", vaccine)
		require.Equal(t, http.StatusCreated, rec.Code)
		registered := decode(t, rec)
		id := registered.Product.ProductID

		verifyURL := scan(t, registered.Token)
		assert.Equal(t, registered.VerifyURL, verifyURL)

		rec = s.do(t, http.MethodGet, verifyURL[len(testOrigin):], nil)
		require.Equal(t, http.StatusOK, rec.Code)
		verified := decode(t, rec)
		assert.Equal(t, id, verified.Product.ProductID)
		assert.Equal(t, vaccine.Name, verified.Product.Name)
		assert.Equal(t, vaccine.ProductionDate, verified.Product.ProductionDate)
		assert.Equal(t, vaccine.ExpiryDate, verified.Product.ExpiryDate)
		assert.Equal(t, vaccine.MedicalInfo, verified.Product.MedicalInfo)
		assert.Equal(t, testOwner, verified.Product.Owner)
	})

	t.Run("mirror outage leaves ledger record unreachable until reconciled", func(t *testing.T) {
		s := newStack(t, mirror, cache)
		ctx := context.Background()

		s.mirror.setDown(true)
		rec := s.do(t, http.MethodPost, "/api/register", vaccine)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "error", decode(t, rec).State)

		events, err := s.chain.Registrations(ctx, 0, s.chain.block)
		require.NoError(t, err)
		require.Len(t, events, 1)
		id := events[0].ContractID
		path := "/api/get-product?productId=" + uintString(id)

		s.mirror.setDown(false)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil).Code)

		n, err := s.reconciler.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		rec = s.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, vaccine.Name, decode(t, rec).Product.Name)
	})

	t.Run("duplicate mirror rows resolve to the first", func(t *testing.T) {
		s := newStack(t, mirror, cache)
		id := s.chain.nextID + 1_000_000

		first := handler.AddProductRequest{ProductID: &id, ProductRequest: vaccine}
		second := first
		second.Name = "VaccineA-relabelled"
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/add-product", first).Code)
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/add-product", second).Code)

		rec := s.do(t, http.MethodGet, "/api/get-product?productId="+uintString(id), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "VaccineA", decode(t, rec).Product.Name)
	})
}

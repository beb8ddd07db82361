package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tokenizer-service/logging"
	"tokenizer-service/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// fakeAPI answers card token requests. SDK calls send the expiry as JSON
// strings and direct calls as numbers, which lets tests fail one tier only.
type fakeAPI struct {
	server     *httptest.Server
	sdkCalls   atomic.Int32
	directCall atomic.Int32
}

func newFakeAPI(t *testing.T, sdkStatus, directStatus int) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		status, id := directStatus, "direct-token"
		if _, isString := body["expiration_year"].(string); isString {
			f.sdkCalls.Add(1)
			status, id = sdkStatus, "sdk-token"
		} else {
			f.directCall.Add(1)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte(`{"message":"invalid access token","error":"unauthorized","status":401,"cause":[]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":               id,
			"first_six_digits": "450995",
			"last_four_digits": "3704",
			"date_created":     "2030-01-02T03:04:05.000-04:00",
			"date_due":         "2030-01-10T03:04:05.000-04:00",
		})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) calls() int32 {
	return f.sdkCalls.Load() + f.directCall.Load()
}

func newTestService(baseURL string) *TokenizeService {
	svc := NewTokenizeService(noop.NewTracerProvider().Tracer("test"), Options{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	})
	svc.now = func() time.Time { return time.Date(2030, 1, 2, 3, 4, 5, 6_000_000, time.UTC) }
	return svc
}

func validRequest() *models.TokenizeRequest {
	return &models.TokenizeRequest{
		AccessToken: "TEST-1234567890",
		CardNumber:  "4509 9535 6623 3704",
		CVV:         "123",
		ExpMonth:    "11",
		ExpYear:     "30",
		HolderName:  "APRO",
		DocType:     "DNI",
		DocNumber:   "12345678",
	}
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })
	return logs
}

func TestTokenize_InvalidAccessToken(t *testing.T) {
	api := newFakeAPI(t, http.StatusCreated, http.StatusCreated)
	svc := newTestService(api.server.URL)

	for _, token := range []string{"", "test-abc", "PROD-abc", " TEST-abc"} {
		req := validRequest()
		req.AccessToken = token

		resp := svc.Tokenize(t.Context(), req)

		assert.False(t, resp.Success)
		assert.Equal(t, InvalidAccessTokenMessage, resp.Error)
		assert.Nil(t, resp.Token)
	}
	assert.Zero(t, api.calls())
}

func TestTokenize_MissingCardFields(t *testing.T) {
	api := newFakeAPI(t, http.StatusCreated, http.StatusCreated)
	svc := newTestService(api.server.URL)

	mutations := map[string]func(*models.TokenizeRequest){
		"card number": func(r *models.TokenizeRequest) { r.CardNumber = "" },
		"cvv":         func(r *models.TokenizeRequest) { r.CVV = "" },
		"exp month":   func(r *models.TokenizeRequest) { r.ExpMonth = "" },
		"exp year":    func(r *models.TokenizeRequest) { r.ExpYear = " " },
		"holder":      func(r *models.TokenizeRequest) { r.HolderName = "" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(req)

			resp := svc.Tokenize(t.Context(), req)

			assert.False(t, resp.Success)
			assert.Equal(t, MissingCardInfoMessage, resp.Error)
		})
	}
	assert.Zero(t, api.calls())
}

func TestTokenize_CredentialCheckedBeforeFields(t *testing.T) {
	svc := newTestService("http://127.0.0.1:0")

	resp := svc.Tokenize(t.Context(), &models.TokenizeRequest{AccessToken: "bad"})

	assert.Equal(t, InvalidAccessTokenMessage, resp.Error)
}

func TestTokenize_SDKSuccess(t *testing.T) {
	api := newFakeAPI(t, http.StatusCreated, http.StatusCreated)
	svc := newTestService(api.server.URL)

	resp := svc.Tokenize(t.Context(), validRequest())

	require.True(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.EqualValues(t, 1, api.sdkCalls.Load())
	assert.Zero(t, api.directCall.Load())

	require.NotNil(t, resp.Token)
	assert.Equal(t, "sdk-token", resp.Token.ID)
	assert.Equal(t, "450995", resp.Token.FirstSixDigits)
	assert.Equal(t, "3704", resp.Token.LastFourDigits)
	assert.Equal(t, "visa", resp.Token.PaymentMethodID)
	assert.Equal(t, 11, resp.Token.ExpirationMonth)
	assert.Equal(t, 2030, resp.Token.ExpirationYear)
	assert.Equal(t, "APRO", resp.Token.Cardholder.Name)
	assert.Equal(t, models.Identification{Type: "DNI", Number: "12345678"}, resp.Token.Cardholder.Identification)
	assert.Equal(t, models.SecurityCode{Length: 3, CardLocation: "back"}, resp.Token.SecurityCode)
	assert.Equal(t, "2030-01-02T03:04:05.000-04:00", resp.Token.DateCreated)
	assert.Equal(t, "2030-01-02T03:04:05.006Z", resp.Token.DateLastUpdated)
	assert.Equal(t, "2030-01-10T03:04:05.000-04:00", resp.Token.DateDue)

	require.NotNil(t, resp.CardInfo)
	assert.Equal(t, models.CardInfo{Type: "Visa Crédito", HolderName: "APRO", ExpirationDate: "11/30"}, *resp.CardInfo)

	require.NotNil(t, resp.PaymentData)
	assert.Equal(t, "sdk-token", resp.PaymentData.Token)
	assert.Equal(t, 100.00, resp.PaymentData.TransactionAmount)
	assert.Equal(t, 1, resp.PaymentData.Installments)
	assert.Equal(t, "test@test.com", resp.PaymentData.Payer.Email)

	assert.Equal(t, "2030-01-02T03:04:05.006Z", resp.Timestamp)
	assert.False(t, resp.IsMock())
}

func TestTokenize_FallsBackToDirect(t *testing.T) {
	logs := observeLogs(t)
	api := newFakeAPI(t, http.StatusUnauthorized, http.StatusOK)
	svc := newTestService(api.server.URL)

	resp := svc.Tokenize(t.Context(), validRequest())

	require.True(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "direct-token", resp.Token.ID)
	assert.Equal(t, "direct-token", resp.PaymentData.Token)
	assert.EqualValues(t, 1, api.sdkCalls.Load())
	assert.EqualValues(t, 1, api.directCall.Load())

	failures := logs.FilterMessage("Tokenization tier failed, trying next").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "sdk", failures[0].ContextMap()["tier"])
}

func TestTokenize_MockWhenAllTiersFail(t *testing.T) {
	logs := observeLogs(t)
	api := newFakeAPI(t, http.StatusInternalServerError, http.StatusBadRequest)
	svc := newTestService(api.server.URL)

	resp := svc.Tokenize(t.Context(), validRequest())

	require.True(t, resp.Success)
	require.NotNil(t, resp.Token)
	assert.True(t, strings.HasPrefix(resp.Token.ID, "mock_"))
	assert.Regexp(t, `^mock_\d+_[0-9a-z]{9}$`, resp.Token.ID)
	assert.Equal(t, resp.Token.ID, resp.PaymentData.Token)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, MockTokenWarning, resp.Error)
	assert.True(t, resp.IsMock())
	assert.Equal(t, "450995", resp.Token.FirstSixDigits)
	assert.Equal(t, "3704", resp.Token.LastFourDigits)
	assert.Empty(t, resp.Token.DateDue)
	assert.Equal(t, "Visa Crédito", resp.CardInfo.Type)
	assert.EqualValues(t, 2, api.calls())

	assert.Equal(t, 2, logs.FilterMessage("Tokenization tier failed, trying next").Len())
	assert.Equal(t, 1, logs.FilterMessage("All tokenization methods failed, generating mock token").Len())
	for _, entry := range logs.All() {
		for _, v := range entry.ContextMap() {
			s, ok := v.(string)
			if ok {
				assert.NotContains(t, s, "4509953566233704", "full card number leaked into logs")
			}
		}
	}
}

func TestTokenize_MockWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	resp := newTestService(url).Tokenize(t.Context(), validRequest())

	assert.True(t, resp.Success)
	assert.True(t, resp.IsMock())
	assert.NotEmpty(t, resp.Error)
}

func TestTokenize_CancelledContextDegradesToMock(t *testing.T) {
	api := newFakeAPI(t, http.StatusCreated, http.StatusCreated)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	resp := newTestService(api.server.URL).Tokenize(ctx, validRequest())

	assert.True(t, resp.Success)
	assert.True(t, resp.IsMock())
}

type stubTier struct {
	name   string
	issued *models.IssuedToken
	err    error
	calls  int
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Tokenize(context.Context, *models.TokenizeRequest) (*models.IssuedToken, error) {
	s.calls++
	return s.issued, s.err
}

func TestTokenize_TierOrder(t *testing.T) {
	first := &stubTier{name: "first", err: errMissingTokenID}
	second := &stubTier{name: "second", issued: &models.IssuedToken{ID: "second-token"}}
	third := &stubTier{name: "third", issued: &models.IssuedToken{ID: "third-token"}}

	svc := newTestService("")
	svc.tiers = []tokenizer{first, second, third}

	resp := svc.Tokenize(t.Context(), validRequest())

	assert.Equal(t, "second-token", resp.Token.ID)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Zero(t, third.calls)
	// Digits missing from the API response come from the request.
	assert.Equal(t, "450995", resp.Token.FirstSixDigits)
	assert.Equal(t, "3704", resp.Token.LastFourDigits)
}

func TestTokenize_SDKWithoutIDEndsRequest(t *testing.T) {
	var directCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, isString := body["expiration_year"].(string); isString {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
			return
		}
		directCalls.Add(1)
		_, _ = w.Write([]byte(`{"id":"direct-token"}`))
	}))
	defer server.Close()

	resp := newTestService(server.URL).Tokenize(t.Context(), validRequest())

	assert.False(t, resp.Success)
	assert.Equal(t, TokenNotCreatedMessage, resp.Error)
	assert.Nil(t, resp.Token)
	assert.Zero(t, directCalls.Load())
}

func TestTokenize_DirectWithoutIDFallsToMock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, isString := body["expiration_year"].(string); isString {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	resp := newTestService(server.URL).Tokenize(t.Context(), validRequest())

	assert.True(t, resp.Success)
	assert.True(t, resp.IsMock())
}

func TestTokenize_ExpirationDateUsesTwoDigitYear(t *testing.T) {
	api := newFakeAPI(t, http.StatusCreated, http.StatusCreated)
	req := validRequest()
	req.ExpYear = "2030"

	resp := newTestService(api.server.URL).Tokenize(t.Context(), req)

	require.True(t, resp.Success)
	assert.Equal(t, "11/30", resp.CardInfo.ExpirationDate)
	assert.Equal(t, 2030, resp.Token.ExpirationYear)
}

func TestTokenize_DebugLogsEachTier(t *testing.T) {
	logs := observeLogs(t)
	api := newFakeAPI(t, http.StatusUnauthorized, http.StatusCreated)

	newTestService(api.server.URL).Tokenize(t.Context(), validRequest())

	calls := logs.FilterMessage("Calling tokenization tier").All()
	require.Len(t, calls, 2)
	assert.Equal(t, "sdk", calls[0].ContextMap()["tier"])
	assert.Equal(t, "direct", calls[1].ContextMap()["tier"])
	assert.Equal(t, "4509****3704", calls[0].ContextMap()["card"])
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.ContextMap(), "cvv")
	}
}

func TestTokenize_DirectTierReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid token"}`))
	}))
	defer server.Close()

	tier := &directTokenizer{baseURL: server.URL, client: server.Client()}
	_, err := tier.Tokenize(t.Context(), validRequest())

	require.Error(t, err)
	assert.Equal(t, `HTTP 401: {"message":"invalid token"}`, err.Error())
	assert.False(t, errors.Is(err, errMissingTokenID))
}

func TestCredentials(t *testing.T) {
	assert.True(t, ValidateAccessToken("TEST-123"))
	assert.True(t, ValidateAccessToken("APP_USR-123"))
	assert.False(t, ValidateAccessToken("APP-123"))
	assert.False(t, ValidateAccessToken(""))

	assert.True(t, IsTestEnvironment("TEST-123"))
	assert.False(t, IsTestEnvironment("APP_USR-123"))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "2030", fullYear("30"))
	assert.Equal(t, "2031", fullYear("2031"))
	assert.Equal(t, 11, atoi("11"))
	assert.Equal(t, 0, atoi("1a"))
	assert.Equal(t, "x", orDefault("", "x"))
	assert.Equal(t, "y", orDefault("y", "x"))
}

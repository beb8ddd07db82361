package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tokenizer-service/cards"
	"tokenizer-service/logging"
	"tokenizer-service/models"
	"tokenizer-service/service"
)

// Tokenizer is implemented by service.TokenizeService
type Tokenizer interface {
	Tokenize(ctx context.Context, req *models.TokenizeRequest) *models.TokenizeResponse
}

// TokenizeHandler handles HTTP requests for card tokenization
type TokenizeHandler struct {
	tokenizer Tokenizer
	catalog   *cards.Catalog
}

// NewTokenizeHandler creates a new tokenize handler
func NewTokenizeHandler(tokenizer Tokenizer, catalog *cards.Catalog) *TokenizeHandler {
	return &TokenizeHandler{
		tokenizer: tokenizer,
		catalog:   catalog,
	}
}

// Register mounts the API routes on r.
func (h *TokenizeHandler) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.POST("/tokenize", h.Tokenize)
	api.POST("/validate", h.Validate)
	api.GET("/cards", h.ListCards)
	api.GET("/states", h.ListStates)
	api.GET("/document-types", h.ListDocumentTypes)
}

// tokenizeBody accepts raw card fields or a catalog card id plus outcome state.
type tokenizeBody struct {
	models.TokenizeRequest
	CardID string `json:"card_id"`
	State  string `json:"state"`
}

// Tokenize handles tokenization requests. Validation and API failures are
// part of the response body, so any decodable request gets a 200.
func (h *TokenizeHandler) Tokenize(c *gin.Context) {
	ctx := c.Request.Context()
	span := trace.SpanFromContext(ctx)

	var body tokenizeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := body.TokenizeRequest
	if body.CardID != "" {
		if err := h.catalog.Apply(&req, body.CardID, body.State); err != nil {
			if errors.Is(err, cards.ErrUnknownCard) || errors.Is(err, cards.ErrUnknownState) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logging.WithTraceContext(span).Error("Catalog lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Catalog lookup failed"})
			return
		}
	}

	response := h.tokenizer.Tokenize(ctx, &req)
	if response.IsMock() {
		span.AddEvent("mock_token_generated")
	}

	c.JSON(http.StatusOK, response)
}

type validateBody struct {
	AccessToken  string `json:"access_token"`
	SelectedCard string `json:"card_id"`
	State        string `json:"state"`
	DocType      string `json:"doc_type"`
	DocNumber    string `json:"doc_number"`
}

// ValidateResponse reports which form fields are usable
type ValidateResponse struct {
	AccessTokenValid bool `json:"access_token_valid"`
	TestEnvironment  bool `json:"test_environment"`
	CardValid        bool `json:"card_valid"`
	StateValid       bool `json:"state_valid"`
	DocumentValid    bool `json:"document_valid"`
	FormValid        bool `json:"form_valid"`
}

// Validate checks form fields without calling the token API.
func (h *TokenizeHandler) Validate(c *gin.Context) {
	var body validateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, cardOK := h.catalog.Card(body.SelectedCard)
	_, stateOK := h.catalog.State(body.State)

	resp := ValidateResponse{
		AccessTokenValid: service.ValidateAccessToken(body.AccessToken),
		TestEnvironment:  service.IsTestEnvironment(body.AccessToken),
		CardValid:        cardOK,
		StateValid:       stateOK,
		DocumentValid:    body.DocType != "" && cards.ValidateDocumentNumber(body.DocNumber, body.DocType),
	}
	resp.FormValid = resp.AccessTokenValid && resp.CardValid && resp.StateValid && resp.DocumentValid

	c.JSON(http.StatusOK, resp)
}

func (h *TokenizeHandler) ListCards(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cards": h.catalog.Cards})
}

func (h *TokenizeHandler) ListStates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"states": h.catalog.States})
}

func (h *TokenizeHandler) ListDocumentTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"document_types": h.catalog.DocumentTypes})
}

// HealthCheck handles health check requests
func (h *TokenizeHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

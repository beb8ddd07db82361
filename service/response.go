package service

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"tokenizer-service/cards"
	"tokenizer-service/models"
)

const (
	InvalidAccessTokenMessage = "Invalid access token format. Must start with TEST- or APP_USR-"
	MissingCardInfoMessage    = "Missing required card information"
	TokenNotCreatedMessage    = "Failed to create card token"
	MockTokenWarning          = "MOCK TOKEN: the MercadoPago API calls failed. This is a simulated token for demonstration only; check the access token or the account configuration."

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
	base36          = "0123456789abcdefghijklmnopqrstuvwxyz"
)

func (s *TokenizeService) failure(message string) *models.TokenizeResponse {
	return &models.TokenizeResponse{
		Success:   false,
		Timestamp: s.timestamp(),
		Error:     message,
	}
}

// buildResponse shapes an issued token into the response returned to callers.
// Fields the API left empty are derived from the request.
func (s *TokenizeService) buildResponse(req *models.TokenizeRequest, issued *models.IssuedToken) *models.TokenizeResponse {
	now := s.timestamp()
	paymentMethodID := cards.PaymentMethodID(req.CardNumber)

	return &models.TokenizeResponse{
		Success:   true,
		Timestamp: now,
		Token: &models.TokenRecord{
			ID:              issued.ID,
			FirstSixDigits:  orDefault(issued.FirstSixDigits, cards.FirstDigits(req.CardNumber, 6)),
			LastFourDigits:  orDefault(issued.LastFourDigits, cards.LastDigits(req.CardNumber, 4)),
			PaymentMethodID: paymentMethodID,
			ExpirationMonth: atoi(req.ExpMonth),
			ExpirationYear:  atoi(fullYear(req.ExpYear)),
			Cardholder:      cardholder(req),
			SecurityCode: models.SecurityCode{
				Length:       len(req.CVV),
				CardLocation: "back",
			},
			DateCreated:     orDefault(issued.DateCreated, now),
			DateLastUpdated: orDefault(issued.DateLastUpdated, now),
			DateDue:         issued.DateDue,
		},
		CardInfo: &models.CardInfo{
			Type:           cards.Brand(cards.Normalize(req.CardNumber)),
			HolderName:     req.HolderName,
			ExpirationDate: req.ExpMonth + "/" + shortYear(req.ExpYear),
		},
		PaymentData: &models.PaymentData{
			Token:             issued.ID,
			PaymentMethodID:   paymentMethodID,
			TransactionAmount: s.transactionAmount,
			Installments:      1,
			Payer: models.Payer{
				Email:          s.payerEmail,
				Identification: identification(req),
			},
		},
	}
}

// mockResponse fabricates a success-shaped response after every tier failed.
// Only the id prefix and the warning tell it apart from a real token.
func (s *TokenizeService) mockResponse(req *models.TokenizeRequest) *models.TokenizeResponse {
	resp := s.buildResponse(req, &models.IssuedToken{ID: s.mockTokenID()})
	resp.Error = MockTokenWarning
	return resp
}

func (s *TokenizeService) mockTokenID() string {
	var b strings.Builder
	for range 9 {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return fmt.Sprintf("%s%d_%s", models.MockTokenPrefix, s.now().UnixMilli(), b.String())
}

func (s *TokenizeService) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func cardholder(req *models.TokenizeRequest) models.Cardholder {
	return models.Cardholder{
		Name:           req.HolderName,
		Identification: identification(req),
	}
}

func identification(req *models.TokenizeRequest) models.Identification {
	return models.Identification{
		Type:   req.DocType,
		Number: req.DocNumber,
	}
}

// fullYear expands a two digit expiry year to four digits.
func fullYear(year string) string {
	year = strings.TrimSpace(year)
	if len(year) == 4 {
		return year
	}
	return "20" + year
}

// shortYear keeps the last two digits of an expiry year.
func shortYear(year string) string {
	year = strings.TrimSpace(year)
	if len(year) > 2 {
		return year[len(year)-2:]
	}
	return year
}

// atoi returns 0 for values that are not integers.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

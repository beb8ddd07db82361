package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tokenizer-service/cards"
	"tokenizer-service/clients/mercadopago"
	"tokenizer-service/models"
)

// tokenizer is one tier of the fallback chain.
type tokenizer interface {
	Name() string
	Tokenize(ctx context.Context, req *models.TokenizeRequest) (*models.IssuedToken, error)
}

var (
	errMissingTokenID = errors.New("failed to create card token: response has no id")

	// errTokenNotCreated ends the chain: the SDK call went through but no
	// token was issued, so no other tier is tried.
	errTokenNotCreated = errors.New("failed to create card token")
)

// sdkTokenizer goes through the typed MercadoPago client, built fresh for
// every request so no state is shared between access tokens.
type sdkTokenizer struct {
	baseURL string
	client  *http.Client
}

func (t *sdkTokenizer) Name() string { return "sdk" }

func (t *sdkTokenizer) Tokenize(ctx context.Context, req *models.TokenizeRequest) (*models.IssuedToken, error) {
	client := mercadopago.NewClient(req.AccessToken,
		mercadopago.WithBaseURL(t.baseURL),
		mercadopago.WithHTTPClient(t.client),
	)

	token, err := client.CreateCardToken(ctx, &mercadopago.CardTokenRequest{
		CardNumber:      cards.Normalize(req.CardNumber),
		SecurityCode:    req.CVV,
		ExpirationMonth: req.ExpMonth,
		ExpirationYear:  fullYear(req.ExpYear),
		Cardholder: &mercadopago.Cardholder{
			Name: req.HolderName,
			Identification: &mercadopago.Identification{
				Type:   req.DocType,
				Number: req.DocNumber,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if token == nil || token.ID == "" {
		return nil, errTokenNotCreated
	}

	return &models.IssuedToken{
		ID:              token.ID,
		FirstSixDigits:  token.FirstSixDigits,
		LastFourDigits:  token.LastFourDigits,
		DateCreated:     token.DateCreated,
		DateLastUpdated: token.DateLastUpdated,
		DateDue:         token.DateDue,
	}, nil
}

// directTokenizer posts the raw JSON body to the card token endpoint.
type directTokenizer struct {
	baseURL string
	client  *http.Client
}

func (t *directTokenizer) Name() string { return "direct" }

func (t *directTokenizer) Tokenize(ctx context.Context, req *models.TokenizeRequest) (*models.IssuedToken, error) {
	extReq := &models.ExternalCardTokenRequest{
		CardNumber:      cards.Normalize(req.CardNumber),
		SecurityCode:    req.CVV,
		ExpirationMonth: atoi(req.ExpMonth),
		ExpirationYear:  atoi(fullYear(req.ExpYear)),
		Cardholder:      cardholder(req),
	}

	jsonData, err := json.Marshal(extReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/card_tokens", t.baseURL), bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call card token API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var extResp models.ExternalCardTokenResponse
	if err := json.Unmarshal(body, &extResp); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if extResp.ID == "" {
		return nil, errMissingTokenID
	}

	return &models.IssuedToken{
		ID:              extResp.ID,
		FirstSixDigits:  extResp.FirstSixDigits,
		LastFourDigits:  extResp.LastFourDigits,
		DateCreated:     extResp.DateCreated,
		DateLastUpdated: extResp.DateLastUpdated,
		DateDue:         extResp.DateDue,
	}, nil
}

package models

import "strings"

// MockTokenPrefix marks token ids fabricated locally when every API call failed.
const MockTokenPrefix = "mock_"

// TokenizeRequest represents a card tokenization request
type TokenizeRequest struct {
	AccessToken string `json:"access_token"`
	CardNumber  string `json:"card_number"`
	CVV         string `json:"cvv"`
	ExpMonth    string `json:"exp_month"`
	ExpYear     string `json:"exp_year"`
	HolderName  string `json:"holder_name"`
	DocType     string `json:"doc_type"`
	DocNumber   string `json:"doc_number"`
}

// MissingCardFields lists the required card fields that are empty.
func (r *TokenizeRequest) MissingCardFields() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"card_number", r.CardNumber},
		{"cvv", r.CVV},
		{"exp_month", r.ExpMonth},
		{"exp_year", r.ExpYear},
		{"holder_name", r.HolderName},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// TokenizeResponse represents the outcome of a tokenization request
type TokenizeResponse struct {
	Success     bool         `json:"success"`
	Timestamp   string       `json:"timestamp"`
	Token       *TokenRecord `json:"token,omitempty"`
	CardInfo    *CardInfo    `json:"cardInfo,omitempty"`
	PaymentData *PaymentData `json:"paymentData,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// IsMock reports whether the token was fabricated locally.
func (r *TokenizeResponse) IsMock() bool {
	return r.Token != nil && strings.HasPrefix(r.Token.ID, MockTokenPrefix)
}

// TokenRecord mirrors the card token resource
type TokenRecord struct {
	ID              string       `json:"id"`
	FirstSixDigits  string       `json:"first_six_digits"`
	LastFourDigits  string       `json:"last_four_digits"`
	PaymentMethodID string       `json:"payment_method_id"`
	ExpirationMonth int          `json:"expiration_month"`
	ExpirationYear  int          `json:"expiration_year"`
	Cardholder      Cardholder   `json:"cardholder"`
	SecurityCode    SecurityCode `json:"security_code"`
	DateCreated     string       `json:"date_created"`
	DateLastUpdated string       `json:"date_last_updated"`
	DateDue         string       `json:"date_due"`
}

type Cardholder struct {
	Name           string         `json:"name"`
	Identification Identification `json:"identification"`
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type SecurityCode struct {
	Length       int    `json:"length"`
	CardLocation string `json:"card_location"`
}

// CardInfo is a human readable summary of the tokenized card
type CardInfo struct {
	Type           string `json:"type"`
	HolderName     string `json:"holderName"`
	ExpirationDate string `json:"expirationDate"`
}

// PaymentData is a sample payment payload ready to be sent with the token
type PaymentData struct {
	Token             string  `json:"token"`
	PaymentMethodID   string  `json:"payment_method_id"`
	TransactionAmount float64 `json:"transaction_amount"`
	Installments      int     `json:"installments"`
	Payer             Payer   `json:"payer"`
}

type Payer struct {
	Email          string         `json:"email"`
	Identification Identification `json:"identification"`
}

// IssuedToken holds the fields returned by the token API that end up in a
// TokenizeResponse. Empty fields are filled from the request.
type IssuedToken struct {
	ID              string
	FirstSixDigits  string
	LastFourDigits  string
	DateCreated     string
	DateLastUpdated string
	DateDue         string
}

// ExternalCardTokenRequest represents a raw request to the card token API
type ExternalCardTokenRequest struct {
	CardNumber      string     `json:"card_number"`
	SecurityCode    string     `json:"security_code"`
	ExpirationMonth int        `json:"expiration_month"`
	ExpirationYear  int        `json:"expiration_year"`
	Cardholder      Cardholder `json:"cardholder"`
}

// ExternalCardTokenResponse represents a raw response from the card token API
type ExternalCardTokenResponse struct {
	ID              string `json:"id"`
	FirstSixDigits  string `json:"first_six_digits"`
	LastFourDigits  string `json:"last_four_digits"`
	Status          string `json:"status"`
	DateCreated     string `json:"date_created"`
	DateLastUpdated string `json:"date_last_updated"`
	DateDue         string `json:"date_due"`
}

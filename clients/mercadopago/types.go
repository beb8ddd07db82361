package mercadopago

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CardTokenRequest is the card token body. Expiration fields are sent as
// strings, the way the vendor SDKs serialize them.
type CardTokenRequest struct {
	CardNumber      string      `json:"card_number"`
	SecurityCode    string      `json:"security_code"`
	ExpirationMonth string      `json:"expiration_month"`
	ExpirationYear  string      `json:"expiration_year"`
	Cardholder      *Cardholder `json:"cardholder,omitempty"`
}

type Cardholder struct {
	Name           string          `json:"name"`
	Identification *Identification `json:"identification,omitempty"`
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// CardToken is the created token resource
type CardToken struct {
	ID              string `json:"id"`
	FirstSixDigits  string `json:"first_six_digits"`
	LastFourDigits  string `json:"last_four_digits"`
	Status          string `json:"status"`
	LuhnValidation  bool   `json:"luhn_validation"`
	LiveMode        bool   `json:"live_mode"`
	CardNumberLen   int    `json:"card_number_length"`
	SecurityCodeLen int    `json:"security_code_length"`
	DateCreated     string `json:"date_created"`
	DateLastUpdated string `json:"date_last_updated"`
	DateDue         string `json:"date_due"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int     `json:"status"`
	Message    string  `json:"message"`
	Code       string  `json:"error"`
	Cause      []Cause `json:"cause"`
	Body       string  `json:"-"`
}

// Cause codes arrive as either strings or numbers.
type Cause struct {
	Code        any    `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if len(e.Cause) == 0 {
		return fmt.Sprintf("mercadopago: status %d: %s", e.StatusCode, msg)
	}

	causes := make([]string, 0, len(e.Cause))
	for _, c := range e.Cause {
		causes = append(causes, fmt.Sprintf("%v: %s", c.Code, c.Description))
	}
	return fmt.Sprintf("mercadopago: status %d: %s (%s)", e.StatusCode, msg, strings.Join(causes, ", "))
}

func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr = &APIError{}
	}
	apiErr.StatusCode = statusCode
	apiErr.Body = string(body)
	return apiErr
}

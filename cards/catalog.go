package cards

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"tokenizer-service/models"
)

var (
	ErrUnknownCard  = errors.New("unknown test card")
	ErrUnknownState = errors.New("unknown test state")
)

//go:embed catalog.yaml
var catalogYAML []byte

// TestCard is a sandbox card published by the vendor.
type TestCard struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Type       string `yaml:"type" json:"type"`
	Brand      string `yaml:"brand" json:"brand"`
	Number     string `yaml:"number" json:"number"`
	CVV        string `yaml:"cvv" json:"cvv"`
	ExpMonth   string `yaml:"exp_month" json:"expMonth"`
	ExpYear    string `yaml:"exp_year" json:"expYear"`
	HolderName string `yaml:"holder_name" json:"holderName"`
}

// TestState is a simulated payment outcome. The sandbox picks the outcome
// from the cardholder name, so the code doubles as holder name.
type TestState struct {
	Code        string `yaml:"code" json:"code"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

type DocumentType struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Catalog is the read-only list of test fixtures offered to users.
type Catalog struct {
	Cards         []TestCard     `yaml:"cards"`
	States        []TestState    `yaml:"states"`
	DocumentTypes []DocumentType `yaml:"document_types"`
}

// LoadCatalog parses a catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Cards) == 0 {
		return nil, errors.New("parse catalog: no cards defined")
	}
	return &c, nil
}

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(catalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Card(id string) (TestCard, bool) {
	for _, card := range c.Cards {
		if card.ID == id {
			return card, true
		}
	}
	return TestCard{}, false
}

func (c *Catalog) State(code string) (TestState, bool) {
	for _, s := range c.States {
		if s.Code == code {
			return s, true
		}
	}
	return TestState{}, false
}

// Apply copies the card identified by cardID into req. A non-empty
// stateCode replaces the holder name to select the simulated outcome.
func (c *Catalog) Apply(req *models.TokenizeRequest, cardID, stateCode string) error {
	card, ok := c.Card(cardID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCard, cardID)
	}

	holder := card.HolderName
	if stateCode != "" {
		state, ok := c.State(stateCode)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownState, stateCode)
		}
		holder = state.Code
	}

	req.CardNumber = card.Number
	req.CVV = card.CVV
	req.ExpMonth = card.ExpMonth
	req.ExpYear = card.ExpYear
	req.HolderName = holder
	return nil
}

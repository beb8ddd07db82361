package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	"tokenizer-service/cards"
	"tokenizer-service/logging"
	"tokenizer-service/models"
	"tokenizer-service/service"
)

type tokenizeFlags struct {
	cardID string
	state  string
	debug  bool
	req    models.TokenizeRequest
}

func newTokenizeCmd() *cobra.Command {
	f := &tokenizeFlags{}

	cmd := &cobra.Command{
		Use:   "tokenize",
		Short: "Tokenize one card and print the JSON result",
		Example: `  tokenizer-service tokenize --access-token TEST-... --card visa-credit --state APRO
  tokenizer-service tokenize --access-token TEST-... --number 4509953566233704 --cvv 123 --exp-month 11 --exp-year 30 --holder APRO`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logOpts := logging.Options{ServiceName: cfg.ServiceName, Debug: cfg.Debug || f.debug}
			if err := logging.InitLogger(logOpts); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logging.Sync()

			req := f.req
			if req.AccessToken == "" {
				req.AccessToken = os.Getenv("MERCADOPAGO_ACCESS_TOKEN")
			}
			if f.cardID != "" {
				if err := cards.DefaultCatalog().Apply(&req, f.cardID, f.state); err != nil {
					return err
				}
			}

			tokenizeService := service.NewTokenizeService(otel.Tracer(cfg.ServiceName), service.Options{
				BaseURL:           cfg.MercadoPagoURL,
				Timeout:           cfg.TokenizeTimeout,
				TransactionAmount: cfg.SampleTransactionAmount,
				PayerEmail:        cfg.SamplePayerEmail,
			})
			resp := tokenizeService.Tokenize(cmd.Context(), &req)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}

			if resp.IsMock() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: the token API could not be reached, the token above is simulated")
			}
			if !resp.Success {
				return errors.New(resp.Error)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.req.AccessToken, "access-token", "", "access token (TEST-... or APP_USR-...); defaults to $MERCADOPAGO_ACCESS_TOKEN")
	flags.StringVar(&f.cardID, "card", "", "test card id from the catalog, e.g. visa-credit")
	flags.StringVar(&f.state, "state", "APRO", "simulated outcome state used as holder name with --card")
	flags.StringVar(&f.req.CardNumber, "number", "", "card number")
	flags.StringVar(&f.req.CVV, "cvv", "", "security code")
	flags.StringVar(&f.req.ExpMonth, "exp-month", "", "expiration month (MM)")
	flags.StringVar(&f.req.ExpYear, "exp-year", "", "expiration year (YY)")
	flags.StringVar(&f.req.HolderName, "holder", "", "cardholder name")
	flags.StringVar(&f.req.DocType, "doc-type", "DNI", "identification type")
	flags.StringVar(&f.req.DocNumber, "doc-number", "12345678", "identification number")
	flags.BoolVar(&f.debug, "debug", false, "log every API attempt; also enabled by $DEBUG")

	return cmd
}

func newCardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cards",
		Short: "Print the test card, state and document type catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := cards.DefaultCatalog()
			for i := range catalog.Cards {
				catalog.Cards[i].Number = cards.FormatDisplay(catalog.Cards[i].Number)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(catalog)
		},
	}
}

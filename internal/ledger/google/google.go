package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"raisin/internal/core"
	"raisin/internal/ledger"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client mirrors payment receipts to a Google Sheets ledger.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	receiptsSheet string
}

// Ensure interface conformance
var _ ledger.ReceiptWriter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus OAuth client and token credentials
// (GOOGLE_OAUTH_CLIENT_JSON/GOOGLE_OAUTH_CLIENT_FILE and
// GOOGLE_OAUTH_TOKEN_JSON/GOOGLE_OAUTH_TOKEN_FILE).
// Optional: GOOGLE_SHEET_NAME (default "Receipts").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Receipts"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		receiptsSheet: sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using OAuth client and token
// credentials, matching what the oauth-init command produces.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	clientJSON, err := readCredential("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	tokenJSON, err := readCredential("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}

	cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	service, err := gsheet.NewService(ctx,
		goption.WithHTTPClient(cfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

func readCredential(jsonVar, fileVar string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonVar)); v != "" {
		return []byte(v), nil
	}
	if path := strings.TrimSpace(os.Getenv(fileVar)); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fileVar, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("missing credentials (set %s or %s)", jsonVar, fileVar)
}

// Append writes one receipt row to the bottom of the receipts sheet and
// returns its range reference.
func (c *Client) Append(ctx context.Context, row ledger.ReceiptRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	cur := core.Currency(row.Currency)
	match := core.FormatAmountPlain(cur, row.MatchFundingAmount, false)
	at := row.At
	values := [][]any{{
		row.PaymentID,
		row.DonationID,
		row.FundraiserID,
		core.FormatTimestamp(&at),
		row.Currency,
		core.FormatAmountPlain(cur, &row.DonationAmount, false),
		core.FormatAmountPlain(cur, &row.ContributionAmount, false),
		match,
		core.FormatAmountPlain(cur, &row.GiftAidAmount, false),
		row.Status,
		row.Version,
	}}

	rng := fmt.Sprintf("%s!A:K", c.receiptsSheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng,
		&gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append receipt to sheet %s: %w", c.receiptsSheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Receipt mirrored to Google Sheets",
		"payment_id", row.PaymentID,
		"version", row.Version,
		"ref", ref)

	return ref, nil
}

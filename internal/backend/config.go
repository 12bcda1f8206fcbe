package backend

import (
	"fmt"

	"raisin/internal/config"
)

// Config holds configuration for mirror creation
type Config struct {
	// Mirror type
	Type MirrorType

	// Google Sheets specific
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string
}

// FromAppConfig converts the application config to mirror config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	mirrorType := MirrorType(appConfig.LedgerMirror)
	if !mirrorType.IsValid() {
		return Config{}, fmt.Errorf("invalid ledger mirror type in config: %s", appConfig.LedgerMirror)
	}

	return Config{
		Type: mirrorType,

		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleSheetName:       appConfig.GoogleSheetName,
		GoogleOAuthClientFile: appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:  appConfig.GoogleOAuthTokenFile,
		GoogleOAuthClientJSON: appConfig.GoogleOAuthClientJSON,
		GoogleOAuthTokenJSON:  appConfig.GoogleOAuthTokenJSON,
	}, nil
}

// Validate validates the mirror configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid mirror type: %s", c.Type)
	}

	if c.Type == SheetsMirror {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets mirror")
		}

		hasClientFile := c.GoogleOAuthClientFile != ""
		hasClientJSON := c.GoogleOAuthClientJSON != ""
		if !hasClientFile && !hasClientJSON {
			return fmt.Errorf("either GoogleOAuthClientFile or GoogleOAuthClientJSON must be provided for sheets mirror")
		}

		hasTokenFile := c.GoogleOAuthTokenFile != ""
		hasTokenJSON := c.GoogleOAuthTokenJSON != ""
		if !hasTokenFile && !hasTokenJSON {
			return fmt.Errorf("either GoogleOAuthTokenFile or GoogleOAuthTokenJSON must be provided for sheets mirror")
		}
	}

	return nil
}

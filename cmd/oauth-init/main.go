// Command oauth-init mints the Sheets OAuth token the receipt mirror needs.
// It runs the three-legged flow once, catching the redirect on a localhost
// callback server, and writes the refresh token to disk.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "oauth-init:", err)
		os.Exit(1)
	}
}

func run() error {
	creds, err := loadClientCredentials()
	if err != nil {
		return err
	}

	cfg, err := google.ConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}

	// The OAuth client must list this URI among its authorized redirect URIs.
	port := os.Getenv("OAUTH_REDIRECT_PORT")
	if port == "" {
		port = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + port + "/callback"

	codeCh := make(chan string, 1)
	srv := &http.Server{Addr: ":" + port}
	http.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- code
		go func() { time.Sleep(500 * time.Millisecond); _ = srv.Close() }()
	})
	go func() { _ = srv.ListenAndServe() }()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(context.Background(), code)
		if err != nil {
			return fmt.Errorf("token exchange: %w", err)
		}
		return saveToken(tok)
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("authorization timed out")
	case <-interrupt:
		return fmt.Errorf("interrupted")
	}
}

func loadClientCredentials() ([]byte, error) {
	if clientJSON := os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"); clientJSON != "" {
		return []byte(clientJSON), nil
	}
	if clientFile := os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"); clientFile != "" {
		b, err := os.ReadFile(clientFile)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
}

func saveToken(tok *oauth2.Token) error {
	path := os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")
	if path == "" {
		path = "token.json"
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	fmt.Printf("Saved token to %s\n", path)
	return nil
}

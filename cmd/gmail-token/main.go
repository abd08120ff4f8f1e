// gmail-token walks through the OAuth consent flow and prints the refresh
// token to store as the password of a Gmail mailbox.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/oauth2"

	"hostel-ingest-service/internal/infrastructure/config"
	"hostel-ingest-service/internal/infrastructure/oauth"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var addr string
	flagSet := pflag.NewFlagSet("gmail-token", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "listen", "localhost:8090", "address of the local callback server")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.GmailEnabled() {
		return errors.New("GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET must be set")
	}

	oauthConfig := oauth.NewGmailConfig(cfg.GmailClientID, cfg.GmailClientSecret, "http://"+addr+"/oauth2callback")

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return err
	}
	state := hex.EncodeToString(stateBytes)

	tokens := make(chan *oauth2.Token, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		token, err := oauthConfig.Exchange(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to exchange code: %v", err), http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, "Authentication successful! You can close this window.")
		tokens <- token
	})

	server := &http.Server{Addr: addr, Handler: mux}
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Open this URL in your browser:\n%s\n", authURL)

	select {
	case token := <-tokens:
		_ = server.Shutdown(context.Background())
		if token.RefreshToken == "" {
			return errors.New("no refresh token returned, revoke the app grant and retry")
		}
		fmt.Printf("\nRefresh Token: %s\n\n", token.RefreshToken)
		return nil
	case err := <-serveErr:
		return err
	}
}

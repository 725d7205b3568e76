package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tubecritique/shared/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const readonlyScope = "https://www.googleapis.com/auth/youtube.readonly"

// ErrNoToken means OAuth is configured but no usable token is on disk yet.
var ErrNoToken = errors.New("no usable YouTube OAuth token; run the authorize command")

func newOAuthConfig(cfg *config.YouTubeConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{readonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// tokenSaver wraps the OAuth config so that refreshed tokens are written back
// to disk and survive restarts.
type tokenSaver struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenFile string
	logger    *slog.Logger
	mu        sync.Mutex
}

// Token implements oauth2.TokenSource.
func (ts *tokenSaver) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	newToken, err := ts.config.TokenSource(context.Background(), ts.token).Token()
	if err != nil {
		return nil, err
	}

	if newToken.AccessToken != ts.token.AccessToken {
		ts.logger.Info("YouTube token refreshed, saving to file", "file", ts.tokenFile)
		ts.token = newToken
		if err := writeToken(ts.tokenFile, newToken); err != nil {
			ts.logger.Warn("failed to save refreshed token", "error", err)
		}
	}

	return newToken, nil
}

// loadToken reads a token from disk. An expired token is still usable when it
// carries a refresh token, since tokenSaver refreshes it on first use.
func loadToken(tokenFile string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", tokenFile, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file %s: %w", tokenFile, err)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, ErrNoToken
	}
	return &tok, nil
}

// Authorize runs the OAuth device flow, printing instructions to out, and
// saves the resulting token to the configured token file.
func Authorize(ctx context.Context, cfg *config.YouTubeConfig, out io.Writer) error {
	if !cfg.UsesOAuth() {
		return fmt.Errorf("OAuth is not configured (set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET, and leave youtube.api_key empty)")
	}
	oauthConfig := newOAuthConfig(cfg)

	resp, err := oauthConfig.DeviceAuth(ctx, oauth2.AccessTypeOffline)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("device authorization rejected (%s): %s. Ensure the OAuth client type is 'TVs and Limited Input devices' and the YouTube Data API v3 is enabled",
				retrieveErr.Response.Status, strings.TrimSpace(string(retrieveErr.Body)))
		}
		return fmt.Errorf("unable to start device authorization: %w", err)
	}

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 80))
	fmt.Fprintf(out, "YOUTUBE DEVICE AUTHORIZATION REQUIRED\n")
	fmt.Fprintf(out, "%s\n", strings.Repeat("=", 80))
	fmt.Fprintf(out, "1. Visit %s in your browser (any device works).\n", resp.VerificationURI)
	fmt.Fprintf(out, "2. Enter this code when prompted: %s\n\n", resp.UserCode)
	if completeURL := strings.TrimSpace(resp.VerificationURIComplete); completeURL != "" {
		fmt.Fprintf(out, "   Or open directly: %s\n\n", completeURL)
	}
	fmt.Fprintf(out, "Waiting for authorization to complete... (Ctrl+C to cancel)\n")

	tok, err := oauthConfig.DeviceAccessToken(ctx, resp, oauth2.AccessTypeOffline)
	if err != nil {
		return fmt.Errorf("device authorization did not complete: %w", err)
	}

	if err := writeToken(cfg.TokenFile, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nAuthorization successful. Token saved to %s\n", cfg.TokenFile)
	return nil
}

// writeToken replaces tokenFile through a temp file in the same directory so a
// concurrent reader never sees a half-written token.
func writeToken(tokenFile string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode oauth token: %w", err)
	}

	dir := filepath.Dir(tokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("unable to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	if err := os.Rename(tmp.Name(), tokenFile); err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	return nil
}

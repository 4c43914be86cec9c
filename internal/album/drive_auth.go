package album

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/kozaktomas/photo-finder/internal/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// ErrNoDriveToken is returned when no cached token exists yet.
var ErrNoDriveToken = errors.New("no Google Drive token, run `photo-finder drive-login` first")

// DriveCredentials is the credential provider for Google Drive: an OAuth
// client secret (credentials.json) and a cached user token (token.json).
// Only read-only Drive access is requested.
type DriveCredentials struct {
	CredentialsFile string
	TokenFile       string
}

func (c DriveCredentials) oauthConfig() (*oauth2.Config, error) {
	b, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	return cfg, nil
}

// AuthCodeURL returns the URL the user opens to grant access.
func (c DriveCredentials) AuthCodeURL(state string) (string, error) {
	cfg, err := c.oauthConfig()
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for a token and caches it.
func (c DriveCredentials) Exchange(ctx context.Context, code string) error {
	cfg, err := c.oauthConfig()
	if err != nil {
		return err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging auth code: %w", err)
	}
	return saveToken(c.TokenFile, tok)
}

// Client returns an HTTP client authorised with the cached token. The token
// is refreshed when expired and the refreshed token is written back.
func (c DriveCredentials) Client(ctx context.Context) (*http.Client, error) {
	cfg, err := c.oauthConfig()
	if err != nil {
		return nil, err
	}
	tok, err := loadToken(c.TokenFile)
	if err != nil {
		return nil, err
	}
	ts := &savingTokenSource{
		base: cfg.TokenSource(ctx, tok),
		path: c.TokenFile,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts)), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoDriveToken
	}
	if err != nil {
		return nil, fmt.Errorf("opening token: %w", err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// savingTokenSource persists every new access token it hands out.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := saveToken(s.path, tok); err != nil {
			logger.Warning("saving refreshed Drive token failed, the next run may ask to log in again",
				logger.LoggerOptions{Key: "path", Data: s.path},
				logger.LoggerOptions{Key: "error", Data: err})
		}
	}
	return tok, nil
}

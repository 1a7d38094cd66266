package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	// DefaultRedirectURL uses explicit IPv4 loopback as required by Spotify for local development.
	// See: https://developer.spotify.com/documentation/web-api/concepts/redirect-uri
	DefaultRedirectURL = "http://127.0.0.1:8888/callback"
	callbackTimeout    = 2 * time.Minute
)

// Scopes are requested on login: reading liked songs for sync and writing
// playlists for export.
var Scopes = []string{
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

var (
	// ErrMissingCredentials is returned when the client ID or secret is empty.
	ErrMissingCredentials = errors.New("missing spotify client_id or client_secret")

	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

const successPage = `<!DOCTYPE html>
<html>
<head><title>mood-mixer</title></head>
<body>
<h1>Spotify connected</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`

// Config holds the Spotify application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // Defaults to DefaultRedirectURL
	TokenPath    string // Defaults to DefaultTokenPath in the user config directory
}

// Authenticator logs in to Spotify from the command line.
type Authenticator struct {
	auth         *spotifyauth.Authenticator
	cache        *TokenCache
	callbackAddr string
	callbackPath string
	out          io.Writer
	log          zerolog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithOutput sets where the authorization URL is printed for the user.
func WithOutput(w io.Writer) Option {
	return func(a *Authenticator) {
		a.out = w
	}
}

// WithLogger sets the authenticator logger.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Authenticator) {
		a.log = log
	}
}

// New creates an Authenticator from cfg.
// Returns ErrMissingCredentials if the client ID or secret is empty.
func New(cfg Config, opts ...Option) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	redirect := cfg.RedirectURL
	if redirect == "" {
		redirect = DefaultRedirectURL
	}
	u, err := url.Parse(redirect)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid redirect URL %q", redirect)
	}

	cache, err := NewTokenCache(cfg.TokenPath, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}

	a := &Authenticator{
		auth: spotifyauth.New(
			spotifyauth.WithClientID(cfg.ClientID),
			spotifyauth.WithClientSecret(cfg.ClientSecret),
			spotifyauth.WithRedirectURL(redirect),
			spotifyauth.WithScopes(Scopes...),
		),
		cache:        cache,
		callbackAddr: u.Host,
		callbackPath: u.Path,
		out:          os.Stderr,
		log:          zerolog.Nop(),
	}
	if a.callbackPath == "" {
		a.callbackPath = "/"
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate returns a Spotify client, reusing the cached token when it
// still works and running the browser flow otherwise.
func (a *Authenticator) Authenticate(ctx context.Context) (*spotify.Client, error) {
	client, err := a.cachedClient(ctx)
	if err != nil {
		return nil, err
	}
	if client != nil {
		return client, nil
	}

	token, err := a.login(ctx)
	if err != nil {
		return nil, err
	}
	a.store(token)
	return a.newClient(ctx, token), nil
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}

// cachedClient returns nil without error when no usable token is cached.
func (a *Authenticator) cachedClient(ctx context.Context) (*spotify.Client, error) {
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}
	if token == nil {
		return nil, nil
	}

	// The oauth2 transport refreshes an expired token on this first call.
	client := a.newClient(ctx, token)
	if _, err := client.CurrentUser(ctx); err != nil {
		a.log.Info().Err(err).Msg("cached token rejected, starting new login")
		return nil, nil
	}

	if current, err := client.Token(); err == nil && current.AccessToken != token.AccessToken {
		a.store(current)
	}
	return client, nil
}

func (a *Authenticator) newClient(ctx context.Context, token *oauth2.Token) *spotify.Client {
	return spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true))
}

// store caches token. Login already succeeded, so failures are only logged.
func (a *Authenticator) store(token *oauth2.Token) {
	if err := a.cache.Save(token); err != nil {
		a.log.Warn().Err(err).Str("path", a.cache.Path()).Msg("failed to cache token")
	}
}

type callbackResult struct {
	token *oauth2.Token
	err   error
}

// login serves the redirect URL locally and waits for Spotify to call it.
func (a *Authenticator) login(ctx context.Context) (*oauth2.Token, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	ln, err := net.Listen("tcp", a.callbackAddr)
	if err != nil {
		return nil, fmt.Errorf("listening for callback on %s: %w", a.callbackAddr, err)
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.Handle(a.callbackPath, a.callbackHandler(state, results))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.deliver(results, callbackResult{err: fmt.Errorf("callback server: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(a.out, "\nOpen this URL to connect Spotify:\n%s\n\nWaiting for authorization...\n", a.auth.AuthURL(state))

	waitCtx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()

	select {
	case res := <-results:
		return res.token, res.err
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrAuthTimeout
	}
}

// callbackHandler exchanges the authorization code and reports the first
// outcome on results.
func (a *Authenticator) callbackHandler(state string, results chan<- callbackResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			a.deliver(results, callbackResult{err: ErrStateMismatch})
			return
		}
		if msg := q.Get("error"); msg != "" {
			http.Error(w, "Authorization failed: "+msg, http.StatusBadRequest)
			a.deliver(results, callbackResult{err: fmt.Errorf("spotify authorization error: %s", msg)})
			return
		}

		token, err := a.auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusInternalServerError)
			a.deliver(results, callbackResult{err: fmt.Errorf("exchanging code for token: %w", err)})
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, successPage)
		a.deliver(results, callbackResult{token: token})
	}
}

// deliver never blocks; only the first result matters.
func (a *Authenticator) deliver(results chan<- callbackResult, res callbackResult) {
	select {
	case results <- res:
	default:
		a.log.Debug().Err(res.err).Msg("ignoring extra oauth callback")
	}
}

// generateState creates a random state string for OAuth.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

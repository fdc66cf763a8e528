package authgate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wburgers/zwave-hub/internal/infrastructure/config"
)

// Logger defines the logging interface used by the Gate.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Identity is a verified user. Profile carries the provider's profile
// document as raw JSON, forwarded to the UI unmodified.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Profile string
}

// Gate validates opaque credentials against the configured identity
// provider. It holds no per-credential state and is safe for
// concurrent use.
type Gate struct {
	cfg    config.AuthConfig
	client *http.Client
	logger Logger
}

// New creates a Gate from the auth configuration.
func New(cfg config.AuthConfig) *Gate {
	return &Gate{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.GetAuthTimeout(),
		},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the gate.
func (g *Gate) SetLogger(logger Logger) {
	g.logger = logger
}

// SetHTTPClient replaces the HTTP client used for provider calls.
func (g *Gate) SetHTTPClient(client *http.Client) {
	g.client = client
}

// Verify checks a credential and returns the verified identity.
//
// Both failure classes reject admission: ErrInvalid for a bad
// credential, ErrProfileUnavailable when the credential verified but
// the profile could not be fetched. There is no partial admission.
func (g *Gate) Verify(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrInvalid)
	}

	if g.cfg.Mode == config.AuthModeJWT {
		return g.verifyJWT(credential)
	}
	return g.verifyTokenInfo(ctx, credential)
}

// tokenInfo is the provider's token introspection response. IssuedTo
// is checked alongside Audience; some providers populate only one.
type tokenInfo struct {
	Audience string `json:"audience"`
	IssuedTo string `json:"issued_to"`
	Email    string `json:"email"`
	UserID   string `json:"user_id"`
	Error    string `json:"error_description"`
}

func (g *Gate) verifyTokenInfo(ctx context.Context, token string) (*Identity, error) {
	infoURL := g.cfg.TokenInfoURL + "?access_token=" + url.QueryEscape(token)

	body, status, err := g.get(ctx, infoURL, "")
	if err != nil {
		return nil, fmt.Errorf("%w: token info request: %w", ErrInvalid, err)
	}

	var info tokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: token info response: %w", ErrInvalid, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: provider rejected token: %s", ErrInvalid, info.Error)
	}
	if info.Audience != g.cfg.ClientID && info.IssuedTo != g.cfg.ClientID {
		g.logger.Warn("token audience mismatch", "audience", info.Audience)
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalid)
	}

	profile, status, err := g.get(ctx, g.cfg.ProfileURL, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned %d", ErrProfileUnavailable, status)
	}

	identity := &Identity{
		Subject: info.UserID,
		Email:   info.Email,
		Profile: string(profile),
	}

	// Best effort; the raw profile is what the UI consumes.
	var fields struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(profile, &fields); err == nil {
		identity.Name = fields.Name
	}

	g.logger.Debug("credential verified", "subject", identity.Subject)
	return identity, nil
}

// get performs a GET with one silent retry on transport failure.
// A non-2xx status is a definitive provider answer, never retried.
func (g *Gate) get(ctx context.Context, rawURL, bearer string) ([]byte, int, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, 0, err
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			g.logger.Debug("provider request failed, retrying once", "error", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return body, resp.StatusCode, nil
	}
	return nil, 0, lastErr
}

// jwtClaims are the fields expected in a locally issued credential.
type jwtClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (g *Gate) verifyJWT(credential string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if g.cfg.JWT.Audience != "" {
		opts = append(opts, jwt.WithAudience(g.cfg.JWT.Audience))
	}
	if g.cfg.JWT.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.cfg.JWT.Issuer))
	}

	token, err := jwt.ParseWithClaims(credential, &jwtClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(g.cfg.JWT.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalid)
	}

	profile, err := json.Marshal(map[string]string{
		"id":    claims.Subject,
		"email": claims.Email,
		"name":  claims.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}

	g.logger.Debug("credential verified", "subject", claims.Subject)
	return &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Profile: string(profile),
	}, nil
}

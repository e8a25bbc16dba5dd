package social

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHTTPTimeout applies to every provider request
const DefaultHTTPTimeout = 10 * time.Second

// OAuthClient holds the authorization code plumbing shared by providers.
// Providers differ only in endpoints, scopes and profile payloads.
type OAuthClient struct {
	Provider     string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	AuthURL      string
	TokenURL     string
	HTTPClient   *http.Client
	// ScopeSeparator joins scopes in the authorization URL
	ScopeSeparator string
	// AcceptHeader is sent with API requests
	AcceptHeader string
}

func (c *OAuthClient) client() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return c.HTTPClient
}

// AuthCodeURL builds the authorization redirect
func (c *OAuthClient) AuthCodeURL(state string, defaultScopes []string, opts ...AuthCodeOption) string {
	cfg := ApplyAuthCodeOptions(defaultScopes, opts...)

	sep := c.ScopeSeparator
	if sep == "" {
		sep = " "
	}

	params := url.Values{
		"client_id":     {c.ClientID},
		"redirect_uri":  {c.CallbackURL},
		"response_type": {"code"},
		"scope":         {strings.Join(cfg.Scopes, sep)},
		"state":         {state},
	}

	if cfg.CodeChallenge != "" {
		method := cfg.CodeChallengeMethod
		if method == "" {
			method = "S256"
		}
		params.Set("code_challenge", cfg.CodeChallenge)
		params.Set("code_challenge_method", method)
	}

	if cfg.Prompt != "" {
		params.Set("prompt", cfg.Prompt)
	}

	return c.AuthURL + "?" + params.Encode()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// Exchange trades code for a token at the token endpoint
func (c *OAuthClient) Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error) {
	cfg := ApplyExchangeOptions(opts...)

	data := url.Values{
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {c.CallbackURL},
	}
	if cfg.CodeVerifier != "" {
		data.Set("code_verifier", cfg.CodeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, NewProviderError(c.Provider, "exchange", 0, "", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewProviderError(c.Provider, "exchange", resp.StatusCode, "", "", err)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, NewProviderError(c.Provider, "exchange", resp.StatusCode, "invalid_response", "failed to decode token response", err)
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		return nil, NewProviderError(c.Provider, "exchange", resp.StatusCode, tokenResp.Error, tokenResp.ErrorDesc, nil)
	}
	if tokenResp.AccessToken == "" {
		return nil, NewProviderError(c.Provider, "exchange", resp.StatusCode, "missing_access_token", "missing access token", nil)
	}

	token := &Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		Scopes:       splitScopes(tokenResp.Scope),
	}
	if tokenResp.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}
	return token, nil
}

// GetJSON performs an authenticated GET and decodes the response into out
func (c *OAuthClient) GetJSON(ctx context.Context, operation, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	accept := c.AcceptHeader
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)

	resp, err := c.client().Do(req)
	if err != nil {
		return NewProviderError(c.Provider, operation, 0, "", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewProviderError(c.Provider, operation, resp.StatusCode, "", "", err)
	}

	if resp.StatusCode != http.StatusOK {
		return NewProviderError(c.Provider, operation, resp.StatusCode, "", apiErrorMessage(c.Provider, body), nil)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewProviderError(c.Provider, operation, resp.StatusCode, "invalid_response", "failed to decode "+operation+" response", err)
	}
	return nil
}

type apiError struct {
	Message string `json:"message"`
}

func apiErrorMessage(provider string, body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return provider + " request failed"
	}
	return msg
}

// splitScopes accepts both comma and space separated scope lists
func splitScopes(scopes string) []string {
	if scopes == "" {
		return nil
	}

	fields := strings.FieldsFunc(scopes, func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

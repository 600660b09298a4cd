package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MKhiriev/go-vault-sync/internal/config"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/utils"
	"github.com/MKhiriev/go-vault-sync/models"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	tokenScope = "api offline_access"

	newDeviceMessage = "new device verification required"
)

type identityClient struct {
	client  *utils.HTTPClient
	device  models.DeviceInfo
	limiter *rate.Limiter

	logger *logger.Logger
}

// NewIdentityClient constructs an [IdentityClient] that identifies itself
// with device on every grant. Token requests are throttled to one per
// cfg.RateLimit with bursts of cfg.Burst; a zero RateLimit disables
// throttling.
func NewIdentityClient(cfg config.ClientAdapter, device models.DeviceInfo, log *logger.Logger) IdentityClient {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &identityClient{
		client: utils.NewHTTPClient(cfg.RequestTimeout, map[string]string{
			"Bitwarden-Client-Name":    device.ClientName,
			"Bitwarden-Client-Version": device.ClientVersion,
		}),
		device:  device,
		limiter: rate.NewLimiter(limit, burst),
		logger:  log,
	}
}

// Prelogin implements [IdentityClient]. It POSTs {"email": ...} to
// /accounts/prelogin. Missing fields in the answer fall back to the defaults
// in [models.PreloginResponse.KdfConfig].
func (c *identityClient) Prelogin(ctx context.Context, identityURL, email string) (models.PreloginResponse, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.PreloginRequest{Email: strings.TrimSpace(email)}).
		Post(joinURL(identityURL, "/accounts/prelogin"))
	if err != nil {
		return models.PreloginResponse{}, transportError("prelogin request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PreloginResponse{}, fmt.Errorf("prelogin: %w", err)
	}

	var out models.PreloginResponse
	if err = decodeJSON(resp.Body(), &out); err != nil {
		return models.PreloginResponse{}, fmt.Errorf("prelogin: %w", err)
	}
	return out, nil
}

// PasswordGrant implements [IdentityClient].
func (c *identityClient) PasswordGrant(ctx context.Context, identityURL string, creds models.PasswordCredentials) (models.GrantResult, error) {
	form := c.passwordForm(creds)
	if creds.RememberToken != "" {
		form["twoFactorToken"] = creds.RememberToken
		form["twoFactorProvider"] = strconv.Itoa(int(models.ProviderRemember))
		form["twoFactorRemember"] = "0"
	}
	return c.grant(ctx, identityURL, creds.Email, form)
}

// TwoFactorGrant implements [IdentityClient].
func (c *identityClient) TwoFactorGrant(ctx context.Context, identityURL string, creds models.PasswordCredentials, code models.TwoFactorCode) (models.GrantResult, error) {
	form := c.passwordForm(creds)
	form["twoFactorToken"] = strings.TrimSpace(code.Code)
	form["twoFactorProvider"] = strconv.Itoa(int(code.Provider))
	form["twoFactorRemember"] = "0"
	if code.Remember {
		form["twoFactorRemember"] = "1"
	}
	return c.grant(ctx, identityURL, creds.Email, form)
}

// NewDeviceGrant implements [IdentityClient].
func (c *identityClient) NewDeviceGrant(ctx context.Context, identityURL string, creds models.PasswordCredentials, otp string) (models.GrantResult, error) {
	form := c.passwordForm(creds)
	form["newDeviceOtp"] = strings.TrimSpace(otp)
	return c.grant(ctx, identityURL, creds.Email, form)
}

// RefreshGrant implements [IdentityClient]. Refresh requests carry neither
// the Auth-Email header nor device fields.
func (c *identityClient) RefreshGrant(ctx context.Context, identityURL, refreshToken string) (models.GrantResult, error) {
	form := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     c.device.ClientName,
	}
	return c.grant(ctx, identityURL, "", form)
}

func (c *identityClient) passwordForm(creds models.PasswordCredentials) map[string]string {
	return map[string]string{
		"grant_type":       "password",
		"username":         strings.TrimSpace(creds.Email),
		"password":         creds.PasswordHash,
		"scope":            tokenScope,
		"client_id":        c.device.ClientName,
		"deviceIdentifier": c.device.Identifier,
		"deviceType":       c.device.Type,
		"deviceName":       c.device.Name,
	}
}

// grant POSTs form to /connect/token. A non-empty email marks a
// password-based grant, which needs the Auth-Email and device headers.
func (c *identityClient) grant(ctx context.Context, identityURL, email string, form map[string]string) (models.GrantResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.GrantResult{}, transportError("token request throttled", err)
	}

	req := c.client.R().
		SetContext(ctx).
		SetFormData(form)
	if email != "" {
		req.SetHeaders(map[string]string{
			"Auth-Email":    encodeAuthEmail(email),
			"device-type":   c.device.Type,
			"cache-control": "no-store",
		})
	}

	resp, err := req.Post(joinURL(identityURL, "/connect/token"))
	if err != nil {
		return models.GrantResult{}, transportError("token request", err)
	}

	result := interpretTokenResponse(resp)
	c.logger.Debug().
		Str("func", "identityClient.grant").
		Str("grant_type", form["grant_type"]).
		Int("status", resp.StatusCode()).
		Int("kind", int(result.Kind)).
		Msg("token endpoint answered")

	return result, nil
}

func interpretTokenResponse(resp *resty.Response) models.GrantResult {
	status := resp.StatusCode()

	var body models.TokenResponse
	// Error answers are not guaranteed to be JSON.
	decodeErr := json.Unmarshal(resp.Body(), &body)

	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		if decodeErr != nil {
			return grantError(fmt.Sprintf("invalid token response: %v", decodeErr), true)
		}
		if providers := body.Providers(); len(providers) > 0 && body.AccessToken == "" {
			return twoFactorResult(body, providers)
		}
		if body.AccessToken == "" {
			return grantError("token response without access token", true)
		}
		return models.GrantResult{Kind: models.GrantToken, Token: body}

	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		if decodeErr == nil {
			if providers := body.Providers(); len(providers) > 0 {
				return twoFactorResult(body, providers)
			}
			if body.ErrorModel != nil && strings.EqualFold(strings.TrimSpace(body.ErrorModel.Message), newDeviceMessage) {
				return twoFactorResult(body, []models.TwoFactorProvider{models.ProviderEmailNewDevice})
			}
		}
		return grantError(errorMessage(body, resp), false)

	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return grantError(errorMessage(body, resp), true)

	default:
		return grantError(errorMessage(body, resp), false)
	}
}

func twoFactorResult(body models.TokenResponse, providers []models.TwoFactorProvider) models.GrantResult {
	return models.GrantResult{
		Kind:           models.GrantTwoFactor,
		Token:          body,
		Providers:      providers,
		ChallengeToken: body.SsoEmail2faSessionToken,
	}
}

func grantError(msg string, retryable bool) models.GrantResult {
	return models.GrantResult{Kind: models.GrantError, ErrorMessage: msg, Retryable: retryable}
}

func errorMessage(body models.TokenResponse, resp *resty.Response) string {
	switch {
	case body.ErrorModel != nil && strings.TrimSpace(body.ErrorModel.Message) != "":
		return strings.TrimSpace(body.ErrorModel.Message)
	case body.ErrorDescription != "":
		return body.ErrorDescription
	case body.Error != "":
		return body.Error
	}
	return fmt.Sprintf("http %d: %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
}

// encodeAuthEmail returns the URL-safe unpadded base64 of email, keeping
// the case the user typed.
func encodeAuthEmail(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.TrimSpace(email)))
}

func decodeJSON(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}
	return nil
}

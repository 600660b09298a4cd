package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/MKhiriev/go-vault-sync/internal/config"
	"github.com/MKhiriev/go-vault-sync/internal/logger"
	"github.com/MKhiriev/go-vault-sync/internal/utils"
	"github.com/MKhiriev/go-vault-sync/models"
)

type vaultAPI struct {
	client *utils.HTTPClient
	logger *logger.Logger
}

// NewVaultAPI constructs the HTTP implementation of [VaultAPI].
func NewVaultAPI(cfg config.ClientAdapter, device models.DeviceInfo, log *logger.Logger) VaultAPI {
	return &vaultAPI{
		client: utils.NewHTTPClient(cfg.RequestTimeout, map[string]string{
			"Bitwarden-Client-Name":    device.ClientName,
			"Bitwarden-Client-Version": device.ClientVersion,
			"device-type":              device.Type,
		}),
		logger: log,
	}
}

// Sync implements [VaultAPI]. It GETs /sync?excludeDomains=true.
func (a *vaultAPI) Sync(ctx context.Context, apiURL, token string) (models.SyncResponse, error) {
	var out models.SyncResponse
	err := a.do(ctx, "sync", token, http.MethodGet, joinURL(apiURL, "/sync?excludeDomains=true"), nil, &out)
	if err != nil {
		return models.SyncResponse{}, err
	}

	a.logger.Debug().
		Str("func", "vaultAPI.Sync").
		Int("ciphers", len(out.Ciphers)).
		Int("folders", len(out.Folders)).
		Int("sends", len(out.Sends)).
		Msg("vault snapshot received")
	return out, nil
}

func (a *vaultAPI) GetCipher(ctx context.Context, apiURL, token, cipherID string) (models.CipherResponse, error) {
	var out models.CipherResponse
	err := a.do(ctx, "get cipher", token, http.MethodGet, itemURL(apiURL, "ciphers", cipherID), nil, &out)
	return out, err
}

func (a *vaultAPI) CreateCipher(ctx context.Context, apiURL, token string, req models.CipherRequest) (models.CipherResponse, error) {
	var out models.CipherResponse
	err := a.do(ctx, "create cipher", token, http.MethodPost, joinURL(apiURL, "/ciphers"), req, &out)
	return out, err
}

func (a *vaultAPI) UpdateCipher(ctx context.Context, apiURL, token, cipherID string, req models.CipherRequest) (models.CipherResponse, error) {
	var out models.CipherResponse
	err := a.do(ctx, "update cipher", token, http.MethodPut, itemURL(apiURL, "ciphers", cipherID), req, &out)
	return out, err
}

// SoftDeleteCipher implements [VaultAPI]. It PUTs /ciphers/{id}/delete; a
// plain DELETE /ciphers/{id} purges the cipher on Bitwarden servers.
func (a *vaultAPI) SoftDeleteCipher(ctx context.Context, apiURL, token, cipherID string) error {
	return a.do(ctx, "soft delete cipher", token, http.MethodPut, itemURL(apiURL, "ciphers", cipherID)+"/delete", nil, nil)
}

// RestoreCipher implements [VaultAPI]. It PUTs /ciphers/{id}/restore.
func (a *vaultAPI) RestoreCipher(ctx context.Context, apiURL, token, cipherID string) (models.CipherResponse, error) {
	var out models.CipherResponse
	err := a.do(ctx, "restore cipher", token, http.MethodPut, itemURL(apiURL, "ciphers", cipherID)+"/restore", nil, &out)
	return out, err
}

// do sends one authenticated request. A non-nil body is sent as JSON; a
// non-nil out receives the decoded 2xx answer.
func (a *vaultAPI) do(ctx context.Context, op, token, method, rawURL string, body, out any) error {
	req := a.client.R().
		SetContext(ctx).
		SetAuthToken(token)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, rawURL)
	if err != nil {
		return transportError(op+" request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err = decodeJSON(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func itemURL(apiURL, collection, id string) string {
	return joinURL(apiURL, collection+"/"+url.PathEscape(id))
}

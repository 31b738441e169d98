// Package postal provides the postal code lookup client and its TTL cache.
package postal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"prospector_backend/platform/logger"
)

const defaultHTTPTimeout = 10 * time.Second

// ErrNotFound is returned when the postal service does not know the code.
var ErrNotFound = fmt.Errorf("postal code not found")

// Result holds the address attributes returned by the postal lookup service.
type Result struct {
	PostalCode   string `json:"cep"`
	Street       string `json:"logradouro"`
	Complement   string `json:"complemento"`
	Neighborhood string `json:"bairro"`
	City         string `json:"localidade"`
	State        string `json:"uf"`
}

type lookupResponse struct {
	Result
	Erro bool `json:"erro"`
}

// Client handles postal lookup requests (ViaCEP-compatible API).
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// NewClient creates a new postal lookup client.
func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    baseURL,
		log:        log,
	}
}

// Lookup fetches the address for an 8-digit postal code.
// Returns ErrNotFound when the service reports an unknown code.
func (c *Client) Lookup(ctx context.Context, code string) (*Result, error) {
	reqURL := fmt.Sprintf("%s/%s/json", c.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("postal lookup request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	c.log.ExternalCall("postal", resp.StatusCode, float64(time.Since(start).Milliseconds()))

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("postal lookup request error", "status", resp.StatusCode)
		return nil, fmt.Errorf("postal lookup status %d", resp.StatusCode)
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.log.Error("postal lookup decode failed", "error", err)
		return nil, err
	}

	// ViaCEP answers 200 with {"erro": true} for well-formed unknown codes.
	if payload.Erro {
		return nil, ErrNotFound
	}

	return &payload.Result, nil
}

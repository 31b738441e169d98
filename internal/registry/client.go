// Package registry provides the HTTP client for the company registry service.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"prospector_backend/platform/logger"
)

const defaultHTTPTimeout = 15 * time.Second

// ErrNotFound is returned for tax identifiers unknown to the registry and
// for any other permanent client-side rejection.
var ErrNotFound = errors.New("company not found in registry")

// StatusError is a non-200 registry response that may warrant a retry.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry status %d", e.StatusCode)
}

// Transient reports whether the failure is worth retrying: quota refusals
// and server-side errors are, everything else is permanent.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Partner is one entry of the company's ownership list.
type Partner struct {
	Name string `json:"nome_socio"`
	Role string `json:"qualificacao_socio"`
}

// Company is the registry record for a tax identifier.
type Company struct {
	TaxID               string
	Name                string
	TradeName           string
	ActivityCode        string
	ActivityDescription string
	RegisteredCapital   *float64
	FoundingDate        *time.Time
	State               string
	Partners            []Partner
}

// companyResponse matches the BrasilAPI-compatible CNPJ payload.
type companyResponse struct {
	CNPJ                string    `json:"cnpj"`
	RazaoSocial         string    `json:"razao_social"`
	NomeFantasia        string    `json:"nome_fantasia"`
	CNAEFiscal          int64     `json:"cnae_fiscal"`
	CNAEFiscalDescricao string    `json:"cnae_fiscal_descricao"`
	CapitalSocial       *float64  `json:"capital_social"`
	DataInicioAtividade string    `json:"data_inicio_atividade"`
	UF                  string    `json:"uf"`
	QSA                 []Partner `json:"qsa"`
}

// Client handles company registry requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// NewClient creates a new registry client.
func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    baseURL,
		log:        log,
	}
}

// Fetch retrieves the company record for a normalized (digits-only) tax id.
func (c *Client) Fetch(ctx context.Context, taxID string) (*Company, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, taxID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("registry request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	c.log.ExternalCall("registry", resp.StatusCode, float64(time.Since(start).Milliseconds()))

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &StatusError{StatusCode: resp.StatusCode}
	default:
		// any other 4xx is a permanent not-found
		return nil, ErrNotFound
	}

	var payload companyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.log.Error("registry decode failed", "error", err)
		return nil, err
	}

	return payload.toCompany(), nil
}

func (r *companyResponse) toCompany() *Company {
	company := &Company{
		TaxID:               r.CNPJ,
		Name:                r.RazaoSocial,
		TradeName:           r.NomeFantasia,
		ActivityDescription: r.CNAEFiscalDescricao,
		RegisteredCapital:   r.CapitalSocial,
		State:               r.UF,
		Partners:            r.QSA,
	}

	if r.CNAEFiscal > 0 {
		company.ActivityCode = strconv.FormatInt(r.CNAEFiscal, 10)
	}

	if r.DataInicioAtividade != "" {
		if parsed, err := time.Parse("2006-01-02", r.DataInicioAtividade); err == nil {
			company.FoundingDate = &parsed
		}
	}

	return company
}

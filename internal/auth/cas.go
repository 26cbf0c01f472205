package auth

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lumen-labs/lumen-gateway/internal/config"
)

// CASVerifier exchanges an opaque service ticket with a CAS server via
// the serviceValidate protocol. Transport failures surface as
// UpstreamAuthUnavailable so callers can distinguish "denied" from
// "can't check".
type CASVerifier struct {
	cfg    func() config.CASConfig
	scopes func() []string
	client *http.Client
}

func NewCASVerifier(cfg func() config.CASConfig, scopes func() []string) *CASVerifier {
	return &CASVerifier{
		cfg:    cfg,
		scopes: scopes,
		client: &http.Client{},
	}
}

// LoginURL returns the CAS login URL callers should be redirected to.
func (v *CASVerifier) LoginURL() string {
	cfg := v.cfg()
	return cfg.ServerURL + "/login?service=" + url.QueryEscape(cfg.ServiceURL)
}

// casServiceResponse mirrors the CAS 2.0/3.0 serviceValidate XML body.
type casServiceResponse struct {
	XMLName xml.Name        `xml:"serviceResponse"`
	Success *casAuthSuccess `xml:"authenticationSuccess"`
	Failure *casAuthFailure `xml:"authenticationFailure"`
}

type casAuthSuccess struct {
	User       string        `xml:"user"`
	Attributes casAttributes `xml:"attributes"`
}

type casAttributes struct {
	Mail        string `xml:"mail"`
	DisplayName string `xml:"displayName"`
}

type casAuthFailure struct {
	Code    string `xml:",attr"`
	Message string `xml:",chardata"`
}

func (v *CASVerifier) Verify(ctx context.Context, ticket string) (*Principal, error) {
	cfg := v.cfg()
	if cfg.ServerURL == "" {
		return nil, newError(KindDenied, "cas not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	validateURL := fmt.Sprintf("%s/serviceValidate?ticket=%s&service=%s",
		cfg.ServerURL, url.QueryEscape(ticket), url.QueryEscape(cfg.ServiceURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validateURL, nil)
	if err != nil {
		return nil, newError(KindUpstreamAuthUnavailable, "build validate request", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, newError(KindUpstreamAuthUnavailable, "cas server unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindUpstreamAuthUnavailable, fmt.Sprintf("cas server returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, newError(KindUpstreamAuthUnavailable, "read cas response", err)
	}

	var svcResp casServiceResponse
	if err := xml.Unmarshal(body, &svcResp); err != nil {
		return nil, newError(KindUpstreamAuthUnavailable, "parse cas response", err)
	}

	if svcResp.Failure != nil {
		return nil, newError(KindDenied, fmt.Sprintf("cas rejected ticket: %s", svcResp.Failure.Code), nil)
	}
	if svcResp.Success == nil || svcResp.Success.User == "" {
		return nil, newError(KindDenied, "cas response missing authenticated user", nil)
	}

	return &Principal{
		Subject:  svcResp.Success.User,
		Username: svcResp.Success.Attributes.DisplayName,
		Issuer:   IssuerSSO,
		Scopes:   v.scopes(),
	}, nil
}

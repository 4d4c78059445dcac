package dataverse

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// credential returns the cached token credential, creating it on first use.
// Concurrent callers share one tenant lookup and each stops waiting when its
// own ctx is done. A failed attempt is not cached so the next request tries
// again.
func (c *Client) credential(ctx context.Context) (azcore.TokenCredential, error) {
	c.mu.Lock()
	cred := c.cred
	c.mu.Unlock()
	if cred != nil {
		return cred, nil
	}

	ch := c.group.DoChan("credential", func() (any, error) {
		// The lookup outlives the caller that started it; HTTPClient.Timeout bounds it.
		return c.newCredential(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(azcore.TokenCredential), nil
	}
}

func (c *Client) newCredential(ctx context.Context) (azcore.TokenCredential, error) {
	tenant := c.cfg.TenantID
	if tenant == "" {
		discovered, err := c.discoverTenant(ctx)
		if err != nil {
			return nil, err
		}
		c.logger.WithField("tenant_id", discovered).Info("dataverse tenant discovered")
		tenant = discovered
	}

	cred, err := azidentity.NewClientSecretCredential(tenant, c.cfg.ClientID, c.cfg.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("creating client secret credential: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred == nil {
		c.cred = cred
	}
	return c.cred, nil
}

// token returns a bearer token for the instance. azidentity caches tokens
// until shortly before they expire.
func (c *Client) token(ctx context.Context) (string, error) {
	cred, err := c.credential(ctx)
	if err != nil {
		return "", err
	}
	tk, err := cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{c.cfg.InstanceURI + "/.default"},
	})
	if err != nil {
		return "", fmt.Errorf("acquiring dataverse token: %w", err)
	}
	return tk.Token, nil
}

// discoverTenant reads the tenant from the bearer challenge the Web API sends
// to anonymous callers.
func (c *Client) discoverTenant(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("probing dataverse for tenant: %w", err)
	}
	defer resp.Body.Close()

	tenant, ok := tenantFromChallenge(resp.Header.Get("WWW-Authenticate"))
	if !ok {
		return "", fmt.Errorf("%w (status %d)", ErrTenantNotFound, resp.StatusCode)
	}
	return tenant, nil
}

// tenantFromChallenge extracts the tenant from a challenge such as
// `Bearer authorization_uri=https://login.microsoftonline.com/<tenant>/oauth2/authorize, resource_id=...`.
func tenantFromChallenge(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	for _, param := range strings.Split(header[7:], ",") {
		key, value, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found || !strings.EqualFold(key, "authorization_uri") {
			continue
		}
		u, err := url.Parse(strings.Trim(value, `"`))
		if err != nil {
			return "", false
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) == 0 || segments[0] == "" {
			return "", false
		}
		return segments[0], true
	}
	return "", false
}

package dataverse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	APIVersion    = "v9.2"
	ContactsSet   = "contacts"
	contactSelect = "firstname,lastname,emailaddress1"
)

// Config addresses one Dataverse environment.
type Config struct {
	InstanceURI  string
	ClientID     string
	ClientSecret string
	TenantID     string
	Timeout      time.Duration
}

// Client talks to the Dataverse Web API. One Client is shared by all requests.
type Client struct {
	HTTPClient *http.Client

	cfg    Config
	apiURL string
	logger logrus.FieldLogger

	mu    sync.Mutex
	cred  azcore.TokenCredential
	group singleflight.Group
}

type Option func(*Client)

// WithCredential skips tenant discovery and uses cred for every request.
func WithCredential(cred azcore.TokenCredential) Option {
	return func(c *Client) { c.cred = cred }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.HTTPClient = h }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.InstanceURI == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(strings.TrimRight(cfg.InstanceURI, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid instance uri %q", cfg.InstanceURI)
	}
	cfg.InstanceURI = u.String()
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		apiURL:     cfg.InstanceURI + "/api/data/" + APIVersion,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InstanceURI is the base URL of the environment.
func (c *Client) InstanceURI() string { return c.cfg.InstanceURI }

// Ready reports whether the client can authenticate against the instance.
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.token(ctx)
	return err
}

// WhoAmI performs an authenticated round trip to the instance.
func (c *Client) WhoAmI(ctx context.Context) (*WhoAmIResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/WhoAmI", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out WhoAmIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding WhoAmI: %w", err)
	}
	return &out, nil
}

// Ping is WhoAmI without the answer.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.WhoAmI(ctx)
	return err
}

// Create inserts a contact and returns the id assigned by the server.
func (c *Client) Create(ctx context.Context, rec ContactRecord) (uuid.UUID, error) {
	resp, err := c.do(ctx, http.MethodPost, "/"+ContactsSet, rec, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer resp.Body.Close()

	id, err := entityIDFromHeader(resp.Header.Get("OData-EntityId"))
	if err != nil {
		return uuid.Nil, err
	}

	c.logger.WithField("contact_id", id).Debug("dataverse contact created")
	return id, nil
}

// RetrieveMultiple returns at most top contacts with the name and email columns.
func (c *Client) RetrieveMultiple(ctx context.Context, top int) ([]ContactRow, error) {
	q := url.Values{}
	q.Set("$select", contactSelect)
	if top > 0 {
		q.Set("$top", strconv.Itoa(top))
	}

	resp, err := c.do(ctx, http.MethodGet, "/"+ContactsSet+"?"+encodeQuery(q), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out contactCollection
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding contacts: %w", err)
	}
	if top > 0 && len(out.Value) > top {
		out.Value = out.Value[:top]
	}
	return out.Value, nil
}

// Update overwrites the three columns of an existing contact. If-Match keeps
// the PATCH from creating a row when the id is unknown.
func (c *Client) Update(ctx context.Context, id uuid.UUID, rec ContactRecord) error {
	resp, err := c.do(ctx, http.MethodPatch, entityPath(id), rec, map[string]string{"If-Match": "*"})
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	resp, err := c.do(ctx, http.MethodDelete, entityPath(id), nil, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// do sends an authenticated request and turns non-2xx answers into *Error.
// On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataverse %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	e := &Error{StatusCode: resp.StatusCode}
	var body odataError
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		e.Code = body.Error.Code
		e.Message = body.Error.Message
	} else {
		e.Message = strings.TrimSpace(string(raw))
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
	}
	return e
}

func entityPath(id uuid.UUID) string {
	return fmt.Sprintf("/%s(%s)", ContactsSet, id)
}

// entityIDFromHeader parses `https://org/api/data/v9.2/contacts(<id>)`.
func entityIDFromHeader(h string) (uuid.UUID, error) {
	open := strings.LastIndex(h, "(")
	end := strings.LastIndex(h, ")")
	if open < 0 || end <= open {
		return uuid.Nil, fmt.Errorf("dataverse: missing entity id in %q", h)
	}
	id, err := uuid.Parse(h[open+1 : end])
	if err != nil {
		return uuid.Nil, fmt.Errorf("dataverse: bad entity id in %q: %w", h, err)
	}
	return id, nil
}

// encodeQuery keeps the OData `$` prefixes readable.
func encodeQuery(q url.Values) string {
	return strings.ReplaceAll(q.Encode(), "%24", "$")
}

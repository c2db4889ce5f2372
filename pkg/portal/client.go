// Package portal is the HTTP client for the billing portal: session login
// and invoice data import, both as JSON documents and as spreadsheet files.
package portal

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://portale.bollettaetica.com"

// Status is the portal's response envelope status.
type Status struct {
	Type string `json:"type"`
	Code int    `json:"code"`
}

// OK reports whether the portal accepted the request.
func (s Status) OK() bool { return s.Code == 1 }

type statusResponse struct {
	Head struct {
		Status Status `json:"status"`
	} `json:"head"`
}

// Client talks to the billing portal.
type Client interface {
	// Login authenticates the session. Subsequent imports reuse the
	// session cookie.
	Login(ctx context.Context, username, password string) (*Status, error)
	// ImportJSON uploads one result document via the JSON import endpoint.
	ImportJSON(ctx context.Context, document []byte) (*Status, error)
	// ImportFile uploads one spreadsheet for the given supply point.
	ImportFile(ctx context.Context, idFornitura, filename string, file io.Reader) (*Status, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default portal address.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client. The client's Jar is
// replaced so the login session cookie is retained.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit bounds import calls per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithInsecureTLS skips certificate verification. The historical portal
// endpoint serves a certificate the default roots do not accept.
func WithInsecureTLS() Option {
	return func(c *httpClient) {
		c.insecure = true
	}
}

type httpClient struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	insecure bool
}

// NewClient creates a portal client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(2, 1),
	}
	for _, o := range opts {
		o(c)
	}
	if c.insecure {
		c.http.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	if c.http.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.http.Jar = jar
	}
	return c
}

func (c *httpClient) Login(ctx context.Context, username, password string) (*Status, error) {
	form := url.Values{
		"f":        {"login"},
		"login":    {username},
		"password": {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/login.ws", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "portal: build login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, "login")
}

func (c *httpClient) ImportJSON(ctx context.Context, document []byte) (*Status, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "portal: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/zelda/fornitura.ws?f=importDatiFattureJSON", bytes.NewReader(document))
	if err != nil {
		return nil, eris.Wrap(err, "portal: build json import request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, "json import")
}

func (c *httpClient) ImportFile(ctx context.Context, idFornitura, filename string, file io.Reader) (*Status, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "portal: rate limit wait")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("f", "importDatiFatture"); err != nil {
		return nil, eris.Wrap(err, "portal: write form field")
	}
	if err := mw.WriteField("id_fornitura", idFornitura); err != nil {
		return nil, eris.Wrap(err, "portal: write form field")
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, eris.Wrap(err, "portal: create form file")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, eris.Wrap(err, "portal: copy file")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "portal: close multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/zelda/fornitura.ws", &body)
	if err != nil {
		return nil, eris.Wrap(err, "portal: build file import request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.do(req, "file import")
}

func (c *httpClient) do(req *http.Request, op string) (*Status, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "portal: %s", op)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "portal: read %s response", op)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("portal: %s returned status %d", op, resp.StatusCode)
	}

	var sr statusResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, eris.Wrapf(err, "portal: parse %s response", op)
	}
	return &sr.Head.Status, nil
}

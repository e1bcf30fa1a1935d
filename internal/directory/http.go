package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/goccy/go-json"
	"github.com/mbeoliero/parley/internal/entity"
	"github.com/mbeoliero/parley/pkg/errcode"
)

// envelope mirrors pkg/response.Response on the upstream side
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type batchRequest struct {
	Ids []int64 `json:"ids"`
}

// HTTPDirectory resolves profiles against the upstream profile service
//
//	GET  {base}/profiles/{id}
//	POST {base}/profiles/batch  {"ids":[...]}
type HTTPDirectory struct {
	baseURL    string
	httpClient *client.Client
	token      string
}

// HTTPOption is a function to configure the directory client
type HTTPOption func(*HTTPDirectory)

// WithHertzClient sets a custom Hertz client
func WithHertzClient(httpClient *client.Client) HTTPOption {
	return func(d *HTTPDirectory) {
		d.httpClient = httpClient
	}
}

// WithServiceToken sets the bearer token sent upstream
func WithServiceToken(token string) HTTPOption {
	return func(d *HTTPDirectory) {
		d.token = token
	}
}

// NewHTTPDirectory creates a new HTTPDirectory
func NewHTTPDirectory(baseURL string, timeout time.Duration, opts ...HTTPOption) (*HTTPDirectory, error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	httpClient, err := client.NewClient(
		client.WithDialTimeout(timeout),
		client.WithClientReadTimeout(timeout),
		client.WithWriteTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	d := &HTTPDirectory{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *HTTPDirectory) GetProfile(ctx context.Context, id int64) (*entity.Profile, error) {
	var p entity.Profile
	if err := d.request(ctx, consts.MethodGet, "/profiles/"+strconv.FormatInt(id, 10), nil, &p); err != nil {
		return nil, err
	}
	if p.Id == 0 {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (d *HTTPDirectory) GetProfiles(ctx context.Context, ids []int64) (map[int64]*entity.Profile, error) {
	ids = dedupIds(ids)
	out := make(map[int64]*entity.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var profiles []*entity.Profile
	if err := d.request(ctx, consts.MethodPost, "/profiles/batch", batchRequest{Ids: ids}, &profiles); err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p != nil && p.Id != 0 {
			out[p.Id] = p
		}
	}
	return out, nil
}

// request makes an HTTP request and decodes the response envelope
func (d *HTTPDirectory) request(ctx context.Context, method, path string, body, result interface{}) error {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetMethod(method)
	req.SetRequestURI(d.baseURL + path)
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		req.SetBody(jsonBody)
	}

	if err := d.httpClient.Do(ctx, req, resp); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == consts.StatusNotFound:
		return ErrProfileNotFound
	case status != consts.StatusOK:
		return fmt.Errorf("profile directory returned status %d", status)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code == errcode.ErrNotFound.Code {
		return ErrProfileNotFound
	}
	if env.Code != 0 {
		return fmt.Errorf("profile directory error: code=%d, msg=%s", env.Code, env.Msg)
	}

	if result != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

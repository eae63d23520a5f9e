package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"owl-location/internal/domain"
	"owl-location/internal/query"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIError 服务端返回的错误响应
type APIError struct {
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("locations api: status %d", e.Status)
	}
	return fmt.Sprintf("locations api: status %d: %s", e.Status, strings.Join(e.Messages, "; "))
}

// envelope mirrors both the success and the error response bodies.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	Status   int             `json:"status"`
	Metadata *ListMetadata   `json:"metadata,omitempty"`
	Errors   []struct {
		Code     any    `json:"code"`
		Message  string `json:"message"`
		Metadata struct {
			Fields []struct {
				Name    string `json:"name"`
				Message string `json:"message"`
			} `json:"fields"`
		} `json:"metadata"`
	} `json:"errors"`
}

// ListMetadata 列表分页信息
type ListMetadata struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// ListParams are the query-string options of a list call. Limit and Offset
// are sent only when Paginate is set.
type ListParams struct {
	Search   string
	Order    query.Order
	Paginate bool
	Limit    int
	Offset   int
}

// rawQuery encodes p. order[...] pairs keep caller order: the server takes
// sort priority from their position.
func (p ListParams) rawQuery(withRelationship bool) string {
	v := url.Values{}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if withRelationship {
		v.Set("withRelationship", "true")
	}
	if p.Paginate {
		v.Set("pagination[limit]", strconv.Itoa(p.Limit))
		v.Set("pagination[offset]", strconv.Itoa(p.Offset))
	}

	var b strings.Builder
	b.WriteString(v.Encode())
	for _, o := range p.Order {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape("order[" + o.Field + "]"))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(string(o.Direction)))
	}
	return b.String()
}

// LocationsClient /api/locations 的 HTTP 客户端
type LocationsClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewLocationsClient 创建客户端
func NewLocationsClient(baseURL string, timeout time.Duration, logger *zap.Logger) *LocationsClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &LocationsClient{httpClient: client, logger: logger}
}

// Get fetches one location without its subtree.
func (c *LocationsClient) Get(ctx context.Context, id string) (*domain.Location, error) {
	var l domain.Location
	if _, err := c.get(ctx, "/api/locations/"+url.PathEscape(id), "", &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetTree fetches one location with its materialized subtree.
func (c *LocationsClient) GetTree(ctx context.Context, id string) (*domain.LocationNode, error) {
	var n domain.LocationNode
	if _, err := c.get(ctx, "/api/locations/"+url.PathEscape(id), "withRelationship=true", &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// List pages flat locations.
func (c *LocationsClient) List(ctx context.Context, p ListParams) ([]*domain.Location, ListMetadata, error) {
	var items []*domain.Location
	meta, err := c.get(ctx, "/api/locations", p.rawQuery(false), &items)
	if err != nil {
		return nil, ListMetadata{}, err
	}
	return items, meta, nil
}

// ListTrees pages root locations, each with its subtree.
func (c *LocationsClient) ListTrees(ctx context.Context, p ListParams) ([]*domain.LocationNode, ListMetadata, error) {
	var items []*domain.LocationNode
	meta, err := c.get(ctx, "/api/locations", p.rawQuery(true), &items)
	if err != nil {
		return nil, ListMetadata{}, err
	}
	return items, meta, nil
}

// Export downloads the xlsx export.
func (c *LocationsClient) Export(ctx context.Context, p ListParams) ([]byte, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(withQuery("/api/locations/export", p.rawQuery(false)))
	if err != nil {
		return nil, fmt.Errorf("failed to call locations api: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return resp.Body(), nil
}

func (c *LocationsClient) get(ctx context.Context, path, rawQuery string, out any) (ListMetadata, error) {
	var env envelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&env).
		Get(withQuery(path, rawQuery))
	if err != nil {
		c.logger.Error("Locations API call failed", zap.String("path", path), zap.Error(err))
		return ListMetadata{}, fmt.Errorf("failed to call locations api: %w", err)
	}
	if resp.IsError() {
		return ListMetadata{}, decodeError(resp)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return ListMetadata{}, fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	var meta ListMetadata
	if env.Metadata != nil {
		meta = *env.Metadata
	}
	return meta, nil
}

// withQuery keeps rawQuery verbatim on the request URL.
func withQuery(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}
	return path + "?" + rawQuery
}

func decodeError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode()}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return apiErr
	}
	for _, e := range env.Errors {
		if len(e.Metadata.Fields) == 0 {
			apiErr.Messages = append(apiErr.Messages, e.Message)
			continue
		}
		for _, f := range e.Metadata.Fields {
			apiErr.Messages = append(apiErr.Messages, f.Message)
		}
	}
	return apiErr
}

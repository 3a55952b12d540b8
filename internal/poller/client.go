package poller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"profilescraper/internal/core/model"
)

// Client talks to the scrape server over HTTP.
type Client struct {
	client *resty.Client
}

func NewClient(baseURL string) *Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/") + "/v1")
	client.SetHeader("user-agent", "scrapectl")
	client.SetTimeout(6 * time.Minute)
	return &Client{client: client}
}

// APIError is an error body returned by the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d %s: %s (%s)", e.Status, e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

// ScrapeResponse is the answer to a started scrape.
type ScrapeResponse struct {
	Success  bool               `json:"success"`
	Profile  string             `json:"profile"`
	Status   string             `json:"status"`
	Posts    []model.PostRecord `json:"posts,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Scrape starts a scrape of profile. An empty mode uses the server default.
func (c *Client) Scrape(ctx context.Context, profile, mode string) (*ScrapeResponse, error) {
	var out ScrapeResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"profile": profile, "mode": mode}).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/scrape")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, apiError(res)
	}
	return &out, nil
}

// Posts returns the stored posts of profile, or ErrNoData while none exist.
func (c *Client) Posts(ctx context.Context, profile string) (*model.ProfilePosts, error) {
	var out model.ProfilePosts
	if err := c.get(ctx, "/scrape/"+url.PathEscape(profile), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Job returns the latest job state of profile.
func (c *Client) Job(ctx context.Context, profile string) (*model.Job, error) {
	var out model.Job
	if err := c.get(ctx, "/scrape/"+url.PathEscape(profile)+"/job", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// All returns every stored profile document.
func (c *Client) All(ctx context.Context) ([]model.ProfilePosts, error) {
	var out []model.ProfilePosts
	if err := c.get(ctx, "/posts", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AwaitPosts polls the status endpoint until profile has posts.
func (c *Client) AwaitPosts(ctx context.Context, profile string, p Policy[*model.ProfilePosts]) ([]model.PostRecord, error) {
	if p.Found == nil {
		p.Found = func(doc *model.ProfilePosts) bool { return doc != nil && len(doc.Posts) > 0 }
	}
	doc, err := Await(ctx, p, func(ctx context.Context) (*model.ProfilePosts, error) {
		return c.Posts(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return doc.Posts, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&APIError{}).
		Get(path)
	if err != nil {
		return err
	}
	if res.IsError() {
		return apiError(res)
	}
	return nil
}

func apiError(res *resty.Response) error {
	e, ok := res.Error().(*APIError)
	if !ok || e.Kind == "" {
		e = &APIError{}
		if json.Unmarshal(res.Body(), e) != nil || e.Message == "" {
			e.Message = strings.TrimSpace(string(res.Body()))
		}
	}
	e.Status = res.StatusCode()
	switch {
	case e.Status == http.StatusNotFound:
		return model.NewError(model.ErrNoData, "not found", e)
	case e.Status == http.StatusServiceUnavailable || e.Kind == "storage_error":
		return model.NewError(model.ErrStorage, "server storage unavailable", e)
	}
	return e
}

type streamEvent struct {
	Type     string             `json:"type"`
	Data     string             `json:"data,omitempty"`
	Posts    []model.PostRecord `json:"posts,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Error    string             `json:"error,omitempty"`
	Kind     string             `json:"kind,omitempty"`
	Detail   string             `json:"detail,omitempty"`
}

// ScrapeStream starts a streamed scrape, copying worker output to progress
// as it arrives, and returns the final response.
func (c *Client) ScrapeStream(ctx context.Context, profile string, progress io.Writer) (*ScrapeResponse, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"profile": profile, "mode": "stream"}).
		SetDoNotParseResponse(true).
		Post("/scrape")
	if err != nil {
		return nil, err
	}
	body := res.RawBody()
	defer body.Close()

	if res.IsError() {
		e := &APIError{Status: res.StatusCode()}
		if err := json.NewDecoder(body).Decode(e); err != nil {
			e.Message = res.Status()
		}
		return nil, e
	}

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		var ev streamEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("decoding stream event: %w", err)
		}
		switch ev.Type {
		case "stdout", "stderr":
			if progress != nil {
				_, _ = io.WriteString(progress, ev.Data)
			}
		case "result":
			return &ScrapeResponse{Success: true, Profile: profile, Status: "resolved", Posts: ev.Posts, Warnings: ev.Warnings}, nil
		case "error":
			return nil, &APIError{Status: res.StatusCode(), Message: ev.Error, Kind: ev.Kind, Detail: ev.Detail}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("stream for %s ended without a result", profile)
}

package mango

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	listMethod   = "getList"
	recordMethod = "getRecord"
)

type Client struct {
	baseURL string
	http    *resty.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetTimeout(timeout).
			SetAuthToken(token),
	}
}

// FetchList requests one page of calls. A cancelled ctx yields an error for
// which IsCancelled is true.
func (c *Client) FetchList(ctx context.Context, p ListParams) (*ListResponse, error) {
	if p.DateFrom == nil || p.DateTo == nil {
		return nil, ErrInvalidRange
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(listQuery(p)).
		Post(c.baseURL + listMethod)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: listMethod, Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{Op: listMethod, StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 256)}
	}

	var out ListResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &TransportError{
			Op:         listMethod,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unmarshal response: %w", err),
		}
	}
	if out.Results == nil {
		out.Results = []Call{}
	}
	return &out, nil
}

// FetchRecording downloads the audio behind a recording token. The payload
// is returned as is.
func (c *Client) FetchRecording(ctx context.Context, record, partnershipID string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"record":         record,
			"partnership_id": partnershipID,
		}).
		Post(c.baseURL + recordMethod)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: recordMethod, Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{Op: recordMethod, StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 256)}
	}
	return resp.Body(), nil
}

func listQuery(p ListParams) map[string]string {
	sortBy := p.SortBy
	if !sortBy.Valid() {
		sortBy = SortByDate
	}
	order := "ASC"
	if p.Desc {
		order = "DESC"
	}
	page := p.Page
	if page < 0 {
		page = 0
	}

	q := map[string]string{
		"date_start": p.DateFrom.Format("2006-01-02"),
		"date_end":   p.DateTo.Format("2006-01-02"),
		"sort_by":    string(sortBy),
		"order":      order,
		"offset":     strconv.Itoa(page * p.Limit),
		"limit":      strconv.Itoa(p.Limit),
	}
	if p.CallType == CallTypeOutbound || p.CallType == CallTypeInbound {
		q["in_out"] = strconv.Itoa(int(p.CallType))
	}
	return q
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

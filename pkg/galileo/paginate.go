package galileo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Page is one response of a paginated search endpoint.
type Page[T any] struct {
	Records           []T  `json:"records"`
	NumRecords        int  `json:"num_records"`
	NextStartingToken *int `json:"next_starting_token"`
}

// PageRequest addresses one page. Cursor is the starting_token sent to the
// server; the first page is always 0.
type PageRequest struct {
	ParentID string
	Cursor   int
	PageSize int
}

// Sort orders search results server-side.
type Sort struct {
	ColumnID  string `json:"column_id"`
	Ascending bool   `json:"ascending"`
	SortType  string `json:"sort_type"`
}

// SearchEndpoint parametrizes the paginated fetch: where to POST and which
// body field carries the parent id.
type SearchEndpoint struct {
	Name        string
	Path        string
	FilterField string
	Sort        *Sort
}

// SessionsSearch lists the sessions of a log stream.
func SessionsSearch(projectID string) SearchEndpoint {
	return logStreamSearch("sessions", projectID)
}

// TracesSearch lists the traces of a log stream.
func TracesSearch(projectID string) SearchEndpoint {
	return logStreamSearch("traces", projectID)
}

// SpansSearch lists the spans of a log stream.
func SpansSearch(projectID string) SearchEndpoint {
	return logStreamSearch("spans", projectID)
}

// ExperimentTracesSearch lists the traces of an experiment, newest first.
func ExperimentTracesSearch(projectID string) SearchEndpoint {
	return SearchEndpoint{
		Name:        "experiment_traces_search",
		Path:        projectPath(projectID, "traces", "search"),
		FilterField: "experiment_id",
		Sort: &Sort{
			ColumnID:  "created_at",
			Ascending: false,
			SortType:  "column",
		},
	}
}

func logStreamSearch(kind, projectID string) SearchEndpoint {
	return SearchEndpoint{
		Name:        kind + "_search",
		Path:        projectPath(projectID, kind, "search"),
		FilterField: "log_stream_id",
	}
}

// projectPath builds /v2/projects/{id}/<parts...> with the id escaped.
func projectPath(projectID string, parts ...string) string {
	p := "/v2/projects/" + url.PathEscape(projectID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// FetchPage requests a single page.
func FetchPage[T any](ctx context.Context, c *Client, ep SearchEndpoint, req PageRequest) (*Page[T], error) {
	if req.ParentID == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrConfig, ep.FilterField)
	}
	if req.PageSize <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive, got %d", ErrConfig, req.PageSize)
	}

	body := map[string]any{
		ep.FilterField:   req.ParentID,
		"limit":          req.PageSize,
		"starting_token": req.Cursor,
	}
	if ep.Sort != nil {
		body["sort"] = ep.Sort
	}

	var page Page[T]
	err := c.do(ctx, Request{
		Endpoint: ep.Name,
		Method:   http.MethodPost,
		Path:     ep.Path,
		Body:     body,
	}, &page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s at token %d: %w", ep.Name, req.Cursor, err)
	}
	c.metrics.observeRecords(ep.Name, len(page.Records))
	return &page, nil
}

// FetchAll pages through ep until the server is exhausted and returns every
// record in arrival order. The server is exhausted when it sends no
// next_starting_token or a page shorter than pageSize; either one ends the
// loop. Any failed page aborts the whole fetch and no records are returned.
// A token the server already handed out is an ErrTransport error.
func FetchAll[T any](ctx context.Context, c *Client, ep SearchEndpoint, parentID string, pageSize int) ([]T, error) {
	all := make([]T, 0)
	cursor := 0
	seen := map[int]struct{}{cursor: {}}

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch %s at token %d: %w", ep.Name, cursor, err)
		}

		page, err := FetchPage[T](ctx, c, ep, PageRequest{
			ParentID: parentID,
			Cursor:   cursor,
			PageSize: pageSize,
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page.Records...)

		if page.NextStartingToken == nil || len(page.Records) < pageSize {
			return all, nil
		}

		next := *page.NextStartingToken
		if _, ok := seen[next]; ok {
			return nil, fmt.Errorf("%w: %s returned starting token %d twice", ErrTransport, ep.Name, next)
		}
		seen[next] = struct{}{}
		cursor = next
	}
}

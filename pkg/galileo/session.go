package galileo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Session fetches one session with its nested traces and spans.
func (c *Client) Session(ctx context.Context, projectID, sessionID string) (*SessionDetail, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrConfig)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrConfig)
	}

	var detail SessionDetail
	err := c.do(ctx, Request{
		Endpoint: "session_get",
		Method:   http.MethodGet,
		Path:     projectPath(projectID, "sessions", url.PathEscape(sessionID)),
	}, &detail)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session %s: %w", sessionID, err)
	}
	return &detail, nil
}

// ExperimentTraces returns the newest traces of an experiment, at most
// limit of them. Only one page is requested.
func (c *Client) ExperimentTraces(ctx context.Context, projectID, experimentID string, limit int) (*Page[Trace], error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrConfig)
	}
	return FetchPage[Trace](ctx, c, ExperimentTracesSearch(projectID), PageRequest{
		ParentID: experimentID,
		PageSize: limit,
	})
}

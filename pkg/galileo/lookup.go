package galileo

import (
	"context"
	"fmt"
	"net/http"
)

type projectFilter struct {
	Name          string `json:"name"`
	Operator      string `json:"operator"`
	Value         string `json:"value"`
	CaseSensitive bool   `json:"case_sensitive"`
}

type projectSearch struct {
	Filters []projectFilter `json:"filters"`
}

type projectList struct {
	Projects []Project `json:"projects"`
}

// ProjectID resolves a project name (case-insensitive) to its id. The first
// match returned by the server wins.
func (c *Client) ProjectID(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: project name is required", ErrConfig)
	}

	var resp projectList
	err := c.do(ctx, Request{
		Endpoint: "projects_search",
		Method:   http.MethodPost,
		Path:     "/v2/projects/paginated",
		Body: projectSearch{Filters: []projectFilter{{
			Name:     "name",
			Operator: "eq",
			Value:    name,
		}}},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to search projects: %w", err)
	}

	if len(resp.Projects) == 0 {
		return "", &NotFoundError{Kind: "project", Name: name}
	}
	return resp.Projects[0].ID, nil
}

// LogStreamID resolves a log stream name (exact match) inside a project.
func (c *Client) LogStreamID(ctx context.Context, projectID, name string) (string, error) {
	if projectID == "" {
		return "", fmt.Errorf("%w: project id is required", ErrConfig)
	}
	if name == "" {
		return "", fmt.Errorf("%w: log stream name is required", ErrConfig)
	}

	var streams []LogStream
	err := c.do(ctx, Request{
		Endpoint: "log_streams_list",
		Method:   http.MethodGet,
		Path:     projectPath(projectID, "log_streams"),
	}, &streams)
	if err != nil {
		return "", fmt.Errorf("failed to list log streams: %w", err)
	}

	for _, s := range streams {
		if s.Name == name {
			return s.ID, nil
		}
	}
	return "", &NotFoundError{Kind: "log stream", Name: name}
}

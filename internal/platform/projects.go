package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Project is one search hit from the project leads API.
type Project struct {
	UniqueProjectID      string `json:"uniqueProjectId"`
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Status               string `json:"status"`
	MatchedDocumentCount int    `json:"matchedDocumentCount"`
}

// CrimsonID extracts the public project id: curated projects carry it in
// uniqueProjectId behind a "cur-" prefix, the rest in the plain id field.
func (p Project) CrimsonID() string {
	if rest, ok := strings.CutPrefix(p.UniqueProjectID, "cur-"); ok {
		return rest
	}
	return p.ID
}

// SearchResult is the filtered search response.
type SearchResult struct {
	NumFound int       `json:"numFound"`
	Docs     []Project `json:"docs"`
}

// ProjectInfo is the init response that maps a public crimson id to the
// platform's internal project id.
type ProjectInfo struct {
	ProjectID   json.Number `json:"ProjectId"`
	ProjectName string      `json:"ProjectName"`
}

// Client wraps the project-facing platform endpoints.
type Client struct {
	auth   *Auth
	appURL string
	logger *slog.Logger
}

func NewClient(auth *Auth, appURL string, logger *slog.Logger) *Client {
	return &Client{auth: auth, appURL: appURL, logger: logger}
}

// SearchProjects queries the project leads index for bidding-stage projects
// matching searchText, keeping only hits whose document match count reaches
// minMatches.
func (c *Client) SearchProjects(ctx context.Context, limit, offset int, searchText string, minMatches int) (*SearchResult, error) {
	payload := []map[string]any{{
		"limit":            limit,
		"offset":           offset,
		"sort":             "lastUpdatedDate",
		"sortDir":          "desc",
		"includeAllFacets": true,
		"includeHidden":    true,
		"filters": map[string]any{
			"searchText": fmt.Sprintf("%q", searchText),
			"projectValue": map[string]any{
				"minValue":    2000000,
				"includeNull": true,
			},
			"dates": []map[string]any{
				{"type": "LastUpdatedDate", "value": -1},
			},
			"status":           []string{"GC Bidding", "Sub-Bidding", "Post-Bid"},
			"contentType":      "CuratedProject, ItbProject",
			"searchTextTarget": []string{"Title", "Details", "Documents"},
		},
		"isWatched":     false,
		"isNew":         false,
		"isUpdated":     false,
		"area":          "project",
		"isExactSearch": false,
	}}

	raw, err := c.auth.Do(ctx, "POST", c.appURL+"/api/agent/searchAPI/projectLeadsElastic", payload, nil)
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}

	var res SearchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	filtered := res.Docs[:0]
	for _, p := range res.Docs {
		if p.MatchedDocumentCount >= minMatches {
			filtered = append(filtered, p)
		}
	}
	c.logger.Info("platform.projects.search",
		"offset", offset,
		"found", res.NumFound,
		"kept", len(filtered),
	)
	res.Docs = filtered
	res.NumFound = len(filtered)
	return &res, nil
}

// InitProjectInformation resolves a crimson id to the internal project id.
// The endpoint expects a one-element batch and a per-call endpoint context.
func (c *Client) InitProjectInformation(ctx context.Context, crimsonID string) (*ProjectInfo, error) {
	payload := []map[string]any{{
		"projectId":   crimsonID,
		"isCrimsonId": true,
		"sourceType":  3,
	}}
	headers := map[string]string{
		"endpointcontext": uuid.New().String(),
		"Referer":         fmt.Sprintf("%s/project/%s/c?sourceType=3", c.appURL, crimsonID),
	}

	raw, err := c.auth.Do(ctx, "POST", c.appURL+"/api/agent/project/initProjectInformation", payload, headers)
	if err != nil {
		return nil, fmt.Errorf("init project %s: %w", crimsonID, err)
	}

	var infos []ProjectInfo
	if err := json.Unmarshal(raw, &infos); err != nil {
		return nil, fmt.Errorf("decode init response: %w", err)
	}
	if len(infos) == 0 || infos[0].ProjectID == "" {
		return nil, fmt.Errorf("project %s not resolvable", crimsonID)
	}
	return &infos[0], nil
}

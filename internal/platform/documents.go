package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/h2g-data/bidscan/constants"
	"github.com/h2g-data/bidscan/internal/entity"
)

// DocumentNode is one node of the vendor's document tree. Category roots
// carry Children; leaves carry the downloadable document id.
type DocumentNode struct {
	DocumentType string         `json:"DocumentType"`
	DocumentID   json.Number    `json:"DocumentId"`
	DisplayName  string         `json:"DisplayName"`
	Children     []DocumentNode `json:"Children"`
}

// FetchDocumentTree pulls the raw document list for an internal project id
// and folds it into the per-category shape stored in project_documents.
// Categories without children are left nil.
func (c *Client) FetchDocumentTree(ctx context.Context, projectID, crimsonID string) (*entity.ProjectDocuments, error) {
	payload := []map[string]any{{
		"projectId":  projectID,
		"sourceType": "3",
	}}
	headers := map[string]string{
		"endpointcontext": uuid.New().String(),
		"Referer":         fmt.Sprintf("%s/project/%s/p?sourceType=3", c.appURL, projectID),
	}

	raw, err := c.auth.Do(ctx, "POST", c.appURL+"/api/agent/document/getProjectDocumentList", payload, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch document tree for project %s: %w", projectID, err)
	}

	var nodes []DocumentNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("decode document tree: %w", err)
	}

	pd := &entity.ProjectDocuments{ProjectID: projectID, CrimsonID: crimsonID}
	for _, node := range nodes {
		if len(node.Children) == 0 {
			continue
		}
		encoded, err := json.Marshal(node)
		if err != nil {
			return nil, fmt.Errorf("encode %s subtree: %w", node.DocumentType, err)
		}
		switch constants.DocumentType(canonicalCategory(node.DocumentType)) {
		case constants.DocPlans:
			pd.Plans = encoded
		case constants.DocSpecs:
			pd.Specs = encoded
		case constants.DocAddenda:
			pd.Addenda = encoded
		case constants.DocOther:
			pd.Other = encoded
		default:
			c.logger.Warn("platform.documents.unknown_category", "type", node.DocumentType)
		}
	}

	c.logger.Info("platform.documents.tree",
		"project_id", projectID,
		"crimson_id", crimsonID,
		"categories", len(nodes),
	)
	return pd, nil
}

// Leaves flattens a category subtree into its downloadable documents.
func (n DocumentNode) Leaves() []DocumentNode {
	if len(n.Children) == 0 {
		if n.DocumentID != "" {
			return []DocumentNode{n}
		}
		return nil
	}
	var out []DocumentNode
	for _, child := range n.Children {
		out = append(out, child.Leaves()...)
	}
	return out
}

func canonicalCategory(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plans":
		return string(constants.DocPlans)
	case "specs":
		return string(constants.DocSpecs)
	case "addenda":
		return string(constants.DocAddenda)
	case "other":
		return string(constants.DocOther)
	default:
		return s
	}
}

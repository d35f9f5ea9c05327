package entity

import "time"

// BidDocument is one downloadable bid document tracked in bid_documents.
// S3Path is either a bare object key, a full s3:// URL, or a placeholder
// ("NA") when the download failed.
type BidDocument struct {
	ProjectID    int64     `json:"project_id"`
	DocumentType string    `json:"document_type"`
	DocumentID   string    `json:"document_id"`
	DisplayName  string    `json:"display_name"`
	S3Path       string    `json:"s3_path"`
	RetryCount   int       `json:"retry_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProjectDocuments is the categorized document tree stored per project.
// Each category holds the raw vendor JSON subtree, or nil when the
// category had no children.
type ProjectDocuments struct {
	ProjectID string  `json:"project_id"`
	CrimsonID string  `json:"crimson_id"`
	Plans     []byte  `json:"-"`
	Specs     []byte  `json:"-"`
	Addenda   []byte  `json:"-"`
	Other     []byte  `json:"-"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

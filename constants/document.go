package constants

// DocumentType is the vendor platform's document-tree category.
type DocumentType string

// Stable values (store these exact strings in DB).
const (
	DocPlans   DocumentType = "Plans"
	DocSpecs   DocumentType = "Specs"
	DocAddenda DocumentType = "Addenda"
	DocOther   DocumentType = "Other"
)

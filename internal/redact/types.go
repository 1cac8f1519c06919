package redact

// Category labels a class of personally identifiable information.
// The set is closed; extending it means adding a matcher in rules.go or an
// entry to the recognizer label map in engine.go.
type Category string

const (
	CategoryCreditCard  Category = "CREDIT_CARD"
	CategorySSN         Category = "SSN"
	CategoryAadhaar     Category = "AADHAAR"
	CategoryPAN         Category = "PAN"
	CategoryEmail       Category = "EMAIL"
	CategoryPhone       Category = "PHONE"
	CategoryReferenceID Category = "REFERENCE_ID"
	CategoryPerson      Category = "PERSON"
	CategoryOrg         Category = "ORG"
	CategoryLocation    Category = "LOCATION"
	CategoryDate        Category = "DATE"
	CategoryMoney       Category = "MONEY"
)

// Span is a located PII occurrence in source text. Start and End are
// half-open byte offsets. Spans live only between detection and masking;
// they are never persisted.
type Span struct {
	Start    int
	End      int
	Category Category
	Text     string
}

// Finding is a per-category detection summary. It carries counts only, so
// it is safe to log and broadcast.
type Finding struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// MaskResult contains the masked transcript and the vault mapping produced
// while masking it.
type MaskResult struct {
	Masked   string            `json:"maskedText"`
	Mapping  map[string]string `json:"-"` // placeholder -> original, local-only
	Findings []Finding         `json:"findings"`
}

package driven

// Normaliser cleans extracted text of one format before it is chunked
type Normaliser interface {
	// Normalise returns cleaned text ready for chunking
	Normalise(content string) string

	// SupportedTypes returns the MIME types this normaliser handles
	SupportedTypes() []string

	// Priority breaks ties when several normalisers match (higher wins)
	Priority() int
}

// NormaliserRegistry selects a normaliser by MIME type
type NormaliserRegistry interface {
	// Get returns the best normaliser for mimeType, or nil
	Get(mimeType string) Normaliser
}

package models

// Record keys with fixed meaning across every extractor
const (
	FieldURL              = "url"
	FieldExtractionStatus = "extraction_status"
	FieldStatus           = "status"
	FieldError            = "error"
	NoDataExtracted       = "no_data_extracted"
)

// Record is the structured output of extracting one capture. Values are
// scalars, []any or nested map[string]any.
type Record map[string]any

// NewRecord returns a record carrying its source URL
func NewRecord(sourceURL string) Record {
	return Record{FieldURL: sourceURL}
}

// EmptyRecord is the record produced when no strategy found anything
func EmptyRecord(sourceURL string) Record {
	return Record{
		FieldURL:              sourceURL,
		FieldExtractionStatus: NoDataExtracted,
	}
}

// URL returns the source URL of the record
func (r Record) URL() string {
	s, _ := r[FieldURL].(string)
	return s
}

// Empty reports whether the record holds nothing beyond its source URL
func (r Record) Empty() bool {
	for k, v := range r {
		if k == FieldURL {
			continue
		}
		if !IsZeroValue(v) {
			return false
		}
	}
	return true
}

// IsZeroValue reports whether v carries no data
func IsZeroValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case []map[string]any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case Record:
		return len(t) == 0
	}
	return false
}

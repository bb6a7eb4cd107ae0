package domain

import "encoding/json"

// TranslationErrorMarker prefixes the display text of a failed translation.
const TranslationErrorMarker = "translation error:"

// TranslationStatus tags a Translation.
type TranslationStatus string

const (
	TranslationOK     TranslationStatus = "translated"
	TranslationFailed TranslationStatus = "failed"
)

// Translation is the outcome of turning a question into a query: either a
// query string or the reason no query could be produced.
type Translation struct {
	status TranslationStatus
	query  string
	reason string
}

// Translated wraps a successfully produced query.
func Translated(query string) Translation {
	return Translation{status: TranslationOK, query: query}
}

// Failed wraps the reason a translation did not produce a query.
func Failed(reason string) Translation {
	return Translation{status: TranslationFailed, reason: reason}
}

func (t Translation) Status() TranslationStatus { return t.status }

// OK reports whether a query is available.
func (t Translation) OK() bool { return t.status == TranslationOK }

// Query returns the translated query, or "" for a failed translation.
func (t Translation) Query() string { return t.query }

// Reason returns why the translation failed.
func (t Translation) Reason() string { return t.reason }

// Display renders the translation for a user. Failures carry
// TranslationErrorMarker so they are recognisable in plain text.
func (t Translation) Display() string {
	if t.OK() {
		return t.query
	}
	return TranslationErrorMarker + " " + t.reason
}

// Err returns nil for a translated query and *ErrTranslation otherwise.
func (t Translation) Err() error {
	if t.OK() {
		return nil
	}
	return &ErrTranslation{Reason: t.reason}
}

func (t Translation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status  TranslationStatus `json:"status"`
		Query   string            `json:"query,omitempty"`
		Reason  string            `json:"reason,omitempty"`
		Display string            `json:"display"`
	}{t.status, t.query, t.reason, t.Display()})
}

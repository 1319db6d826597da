package contract

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Violation is one schema rule the document broke.
type Violation struct {
	// Field is the JSON path of the offending value, e.g. "items.0.price".
	Field string

	// Description is the human-readable rule, e.g. "Invalid type. Expected:
	// string, given: integer".
	Description string
}

// Violations is the outcome of validating one document against one schema.
// An empty Items slice means the document conforms.
type Violations struct {
	// Schema is the registry name the document was validated against.
	Schema string

	// Items lists the broken rules in schema evaluation order.
	Items []Violation
}

// OK reports whether the document conformed to the schema.
func (v *Violations) OK() bool {
	return len(v.Items) == 0
}

// String renders the violations as a multi-line report for test failures.
func (v *Violations) String() string {
	if v.OK() {
		return fmt.Sprintf("document conforms to schema %q", v.Schema)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d violation(s) of schema %q:\n", len(v.Items), v.Schema)
	for i, item := range v.Items {
		fmt.Fprintf(&b, "  %d. %s: %s\n", i+1, item.Field, item.Description)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Validate checks document against the schema registered under name. A
// non-conforming document is not an error: inspect the returned Violations.
// Errors are reserved for unknown schema names and documents that are not
// valid JSON at all.
func (r *Registry) Validate(name string, document []byte) (*Violations, error) {
	schema, err := r.schema(name)
	if err != nil {
		return nil, err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validating against schema %q: %w", name, err)
	}

	v := &Violations{Schema: name}
	for _, re := range result.Errors() {
		v.Items = append(v.Items, Violation{
			Field:       re.Field(),
			Description: re.Description(),
		})
	}
	return v, nil
}

// ValidateResponse validates resp's body against the schema registered under
// name. The body is read in full and then restored, so the caller can still
// decode resp.Body afterwards. The response is not closed.
func (r *Registry) ValidateResponse(name string, resp *http.Response) (*Violations, error) {
	if resp == nil {
		return nil, fmt.Errorf("response must not be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return r.Validate(name, body)
}

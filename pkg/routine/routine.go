package routine

// ParameterType is the closed set of declared parameter types. It drives
// coercion during interpolation, not storage representation.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeInteger ParameterType = "integer"
	TypeNumber  ParameterType = "number"
	TypeBoolean ParameterType = "boolean"
	TypeDate    ParameterType = "date"
)

// ValidParameterTypes enumerates every accepted ParameterType value.
var ValidParameterTypes = map[ParameterType]bool{
	TypeString:  true,
	TypeInteger: true,
	TypeNumber:  true,
	TypeBoolean: true,
	TypeDate:    true,
}

// Parameter declares one named input to a routine. Immutable once the
// routine is accepted.
type Parameter struct {
	Name        string        `json:"name" yaml:"name"`
	Type        ParameterType `json:"type" yaml:"type"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Examples    []string      `json:"examples,omitempty" yaml:"examples,omitempty"`
	Required    bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Secret      bool          `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// TypeMap maps declared parameter names to their types. Derived once per
// routine and read-only for the lifetime of a run.
type TypeMap map[string]ParameterType

// OperationKind tags the variant of an Operation.
type OperationKind string

const (
	OpNavigate       OperationKind = "navigate"
	OpClick          OperationKind = "click"
	OpType           OperationKind = "type"
	OpScroll         OperationKind = "scroll"
	OpExtractHTML    OperationKind = "extract_html"
	OpFetch          OperationKind = "fetch"
	OpDownload       OperationKind = "download"
	OpEvaluateScript OperationKind = "evaluate_script"
)

// ValidOperationKinds enumerates every accepted operation kind.
var ValidOperationKinds = map[OperationKind]bool{
	OpNavigate:       true,
	OpClick:          true,
	OpType:           true,
	OpScroll:         true,
	OpExtractHTML:    true,
	OpFetch:          true,
	OpDownload:       true,
	OpEvaluateScript: true,
}

// Operation is one executable step of a routine. Kind selects the variant;
// the remaining fields are populated per kind. URL, Selector, Text, Method,
// Filename and Script are string-context fields (interpolation always yields
// text). Headers and Body are structured-context fields (whole-value
// placeholders preserve the declared parameter type).
type Operation struct {
	Kind     OperationKind  `json:"type" yaml:"type"`
	URL      string         `json:"url,omitempty" yaml:"url,omitempty"`
	Selector string         `json:"selector,omitempty" yaml:"selector,omitempty"`
	Text     string         `json:"text,omitempty" yaml:"text,omitempty"`
	Method   string         `json:"method,omitempty" yaml:"method,omitempty"`
	Headers  map[string]any `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body     any            `json:"body,omitempty" yaml:"body,omitempty"`
	Filename string         `json:"filename,omitempty" yaml:"filename,omitempty"`
	Script   string         `json:"script,omitempty" yaml:"script,omitempty"`

	// Timeout bounds evaluate_script execution (duration string, e.g. "10s").
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Produce names the value this operation deposits into the run context.
	// Later operations reference it like a declared parameter.
	Produce string `json:"produce,omitempty" yaml:"produce,omitempty"`
}

// Routine is a declarative automation script: declared parameters plus an
// ordered, non-empty sequence of operations. Routine definitions are
// long-lived and read-only to the engine; a routine is validated once and
// may be executed many times with different parameter values.
type Routine struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Operations  []Operation `json:"operations" yaml:"operations"`
}

// TypeMap derives the name→type map from the declared parameters.
func (r *Routine) TypeMap() TypeMap {
	tm := make(TypeMap, len(r.Parameters))
	for _, p := range r.Parameters {
		tm[p.Name] = p.Type
	}
	return tm
}

// stringFields returns the string-context field values of an operation,
// in declaration order. Structured fields are walked separately.
func (op *Operation) stringFields() []string {
	return []string{op.URL, op.Selector, op.Text, op.Method, op.Filename, op.Script}
}

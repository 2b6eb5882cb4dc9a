package access

// DataFilterContext is the per-item working state of a redaction pass. It is
// returned to the caller so the audit log can record what was removed.
type DataFilterContext struct {
	OriginalData     map[string]any
	RequestedFields  []string
	AllowedFields    []string
	FilteredFields   []string
	FieldSensitivity map[string]SensitivityLevel
	FilteredData     map[string]any
	FilteringApplied bool
}

// NewDataFilterContext starts a context for one payload item
func NewDataFilterContext(original map[string]any, requested []string) *DataFilterContext {
	return &DataFilterContext{
		OriginalData:     original,
		RequestedFields:  requested,
		FieldSensitivity: make(map[string]SensitivityLevel, len(original)),
	}
}

// FilteringRatio is the share of original fields that did not survive
func (c *DataFilterContext) FilteringRatio() float64 {
	if len(c.OriginalData) == 0 {
		return 0
	}
	return float64(len(c.FilteredFields)) / float64(len(c.OriginalData))
}

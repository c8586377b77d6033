package quota

// WindowUsage is the live count of one window.
type WindowUsage struct {
	Kind  WindowKind `json:"window"`
	Count int        `json:"count"`
	Limit int        `json:"limit"`
}

type OperationUsage struct {
	OperationClass OperationClass `json:"operation_class"`
	Unconstrained  bool           `json:"unconstrained,omitempty"`
	Windows        []WindowUsage  `json:"windows"`
}

// UsageReport is a read-only snapshot of a principal's consumption for the current UTC day.
type UsageReport struct {
	PrincipalID    string           `json:"principal_id"`
	Tier           Tier             `json:"tier"`
	Day            string           `json:"day"`
	CostCurrentUSD float64          `json:"cost_current_usd"`
	CostLimitUSD   *float64         `json:"cost_limit_usd"`
	Operations     []OperationUsage `json:"operations"`
}

package constants

// Outcome is the state of a single validation in a report.
type Outcome string

// Stable values (exported in reports).
const (
	OutcomePassed     Outcome = "PASSED"           // adjudicator judged the check valid
	OutcomeFailed     Outcome = "FAILED"           // adjudicator judged the check invalid
	OutcomeUnverified Outcome = "COULD_NOT_VERIFY" // adjudication error or missing external data
)

// Operation is the customs direction of a pedimento.
type Operation string

const (
	OperationImport Operation = "IMP"
	OperationExport Operation = "EXP"
)

// ParseOperation accepts the pedimento "tipo de operación" in its common spellings.
func ParseOperation(s string) Operation {
	switch s {
	case "EXP", "exp", "2", "EXPORTACION", "EXPORTACIÓN", "export":
		return OperationExport
	default:
		return OperationImport
	}
}

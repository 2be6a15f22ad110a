package constants

const (
	CreateLoan        = "create_loan"
	ValidateMilestone = "validate_milestone"
	AddLiquidity      = "add_liquidity"
	RunReconciliation = "run_reconciliation"
)

package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway submits domain operations to the external Soroban contract. Calls are slow and may fail or
// time out; callers must not assume a failed call had no effect on chain.
type Gateway interface {
	SubmitLoanCreation(ctx context.Context, req LoanCreation) (LoanReceipt, error)
	SubmitMilestoneValidation(ctx context.Context, req MilestoneValidation) (Receipt, error)
	SubmitLiquidityAddition(ctx context.Context, req LiquidityAddition) (LiquidityReceipt, error)
	// AccountExists is a best-effort probe; lookup failures read as false.
	AccountExists(ctx context.Context, publicKey string) bool
	// TransactionExists reports whether the ledger knows txHash.
	TransactionExists(ctx context.Context, txHash string) (bool, error)
}

// Signer is the account that signs a contract invocation.
type Signer struct {
	PublicKey string
	Secret    string
}

type LoanCreation struct {
	Borrower          Signer
	Amount            decimal.Decimal
	NumMilestones     int
	ImpactDescription string
	ImpactUnit        string
	ImpactTarget      decimal.Decimal
}

type MilestoneValidation struct {
	Validator       Signer
	LoanIDOnChain   uint64
	MilestoneIndex  int
	ImpactDelivered decimal.Decimal
	IdempotencyKey  string
}

type LiquidityAddition struct {
	Investor Signer
	Amount   decimal.Decimal
}

type Receipt struct {
	TxHash string
}

// LoanReceipt carries the contract's loan id. Placeholder is true when the relay did not return one.
type LoanReceipt struct {
	TxHash      string
	LoanID      uint64
	Placeholder bool
}

type LiquidityReceipt struct {
	TxHash      string
	PoolBalance decimal.Decimal
}

// Package testutil holds fixtures shared by package tests: an in-memory store, Redis and a fake ledger.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"impact-lending-backend/internal/application/ledger"
	"impact-lending-backend/internal/domain"
	"impact-lending-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Valid StrKey account ids for fixtures.
var StellarKeys = []string{
	"GAAZI4TCR3TY5OJHCTJC2A4QSY6CJWJH5IAJTGKIN2ER7LBNVKOCCWN7",
	"GAAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQDZ7H",
	"GABAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEJXA",
	"GABQGAYDAMBQGAYDAMBQGAYDAMBQGAYDAMBQGAYDAMBQGAYDAMBQHGPC",
	"GACAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAJJHP",
	"GACQKBIFAUCQKBIFAUCQKBIFAUCQKBIFAUCQKBIFAUCQKBIFAUCQKG7N",
	"GADAMBQGAYDAMBQGAYDAMBQGAYDAMBQGAYDAMBQGAYDAMBQGAYDANWXK",
}

var dbSeq int64

// OpenDB returns a migrated in-memory SQLite DB private to the test.
// A single connection keeps every statement on the same memory database.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("file:test%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(domain.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// OpenRedis starts a miniredis server and returns a client for it.
func OpenRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

var userSeq int64

// CreateUser inserts a user with the given role, a unique email and a unique (unchecked) account id.
func CreateUser(t *testing.T, db *gorm.DB, role, name string) *domain.User {
	t.Helper()
	n := atomic.AddInt64(&userSeq, 1)
	u := &domain.User{
		Email:            fmt.Sprintf("user%d@example.com", n),
		Name:             name,
		Role:             role,
		StellarPublicKey: fmt.Sprintf("GTEST%051d", n),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateProducer, CreateValidator and CreateInvestor are role shorthands.
func CreateProducer(t *testing.T, db *gorm.DB) *domain.User {
	return CreateUser(t, db, constants.Producer, "Ana Producer")
}

func CreateValidator(t *testing.T, db *gorm.DB) *domain.User {
	return CreateUser(t, db, constants.Validator, "Vic Validator")
}

func CreateInvestor(t *testing.T, db *gorm.DB) *domain.User {
	return CreateUser(t, db, constants.Investor, "Ivy Investor")
}

// FakeLedger is an in-memory ledger.Gateway that records every submission.
type FakeLedger struct {
	mu sync.Mutex

	LoanID      uint64
	PoolBalance decimal.Decimal
	Accounts    map[string]bool
	KnownTx     map[string]bool

	LoanErr       error
	ValidationErr error
	LiquidityErr  error
	TxLookupErr   error

	Loans       []ledger.LoanCreation
	Validations []ledger.MilestoneValidation
	Liquidity   []ledger.LiquidityAddition

	seq int
}

func NewFakeLedger() *FakeLedger {
	return &FakeLedger{LoanID: 1, Accounts: map[string]bool{}, KnownTx: map[string]bool{}}
}

func (f *FakeLedger) nextHash(prefix string) string {
	f.seq++
	h := fmt.Sprintf("%s-tx-%d", prefix, f.seq)
	f.KnownTx[h] = true
	return h
}

func (f *FakeLedger) SubmitLoanCreation(ctx context.Context, req ledger.LoanCreation) (ledger.LoanReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Loans = append(f.Loans, req)
	if f.LoanErr != nil {
		return ledger.LoanReceipt{}, f.LoanErr
	}
	return ledger.LoanReceipt{TxHash: f.nextHash("loan"), LoanID: f.LoanID}, nil
}

func (f *FakeLedger) SubmitMilestoneValidation(ctx context.Context, req ledger.MilestoneValidation) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Validations = append(f.Validations, req)
	if f.ValidationErr != nil {
		return ledger.Receipt{}, f.ValidationErr
	}
	return ledger.Receipt{TxHash: f.nextHash("validation")}, nil
}

func (f *FakeLedger) SubmitLiquidityAddition(ctx context.Context, req ledger.LiquidityAddition) (ledger.LiquidityReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Liquidity = append(f.Liquidity, req)
	if f.LiquidityErr != nil {
		return ledger.LiquidityReceipt{}, f.LiquidityErr
	}
	f.PoolBalance = f.PoolBalance.Add(req.Amount)
	return ledger.LiquidityReceipt{TxHash: f.nextHash("liquidity"), PoolBalance: f.PoolBalance}, nil
}

func (f *FakeLedger) AccountExists(ctx context.Context, publicKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Accounts[publicKey]
}

func (f *FakeLedger) TransactionExists(ctx context.Context, txHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TxLookupErr != nil {
		return false, f.TxLookupErr
	}
	return f.KnownTx[txHash], nil
}

// ValidationCalls returns how many milestone validations were submitted.
func (f *FakeLedger) ValidationCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Validations)
}

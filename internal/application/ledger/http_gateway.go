package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// placeholderLoanID is stored when the relay does not return the contract's loan id.
const placeholderLoanID uint64 = 1

// ErrNotConfigured is returned when the relay URL or contract id is missing.
var ErrNotConfigured = errors.New("ledger: LEDGER_GATEWAY_URL and CONTRACT_ID must be set")

// HTTPGateway is a Gateway backed by a Soroban RPC relay (invocations) and Horizon (lookups).
type HTTPGateway struct {
	RelayURL          string
	HorizonURL        string
	ContractID        string
	NetworkPassphrase string
	Timeout           time.Duration
	Client            *http.Client

	clientOnce sync.Once
}

type scArg struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type invokeSource struct {
	PublicKey string `json:"publicKey"`
	Secret    string `json:"secret"`
}

type invokeRequest struct {
	ContractID        string       `json:"contractId"`
	Function          string       `json:"function"`
	NetworkPassphrase string       `json:"networkPassphrase"`
	TimeoutSeconds    int          `json:"timeoutSeconds"`
	Source            invokeSource `json:"source"`
	Args              []scArg      `json:"args"`
	IdempotencyKey    string       `json:"idempotencyKey,omitempty"`
}

type invokeResponse struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	Result *scArg `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (g *HTTPGateway) client() *http.Client {
	g.clientOnce.Do(func() {
		if g.Client == nil {
			g.Client = &http.Client{Timeout: g.timeout()}
		}
	})
	return g.Client
}

func (g *HTTPGateway) timeout() time.Duration {
	if g.Timeout <= 0 {
		return 30 * time.Second
	}
	return g.Timeout
}

func (g *HTTPGateway) SubmitLoanCreation(ctx context.Context, req LoanCreation) (LoanReceipt, error) {
	resp, err := g.invoke(ctx, "create_loan", req.Borrower, "", []scArg{
		{Type: "address", Value: req.Borrower.PublicKey},
		{Type: "i128", Value: ToStroops(req.Amount)},
		{Type: "u32", Value: strconv.Itoa(req.NumMilestones)},
		{Type: "string", Value: req.ImpactDescription},
		{Type: "string", Value: req.ImpactUnit},
		{Type: "i128", Value: ToImpactUnits(req.ImpactTarget)},
	})
	if err != nil {
		return LoanReceipt{}, err
	}
	receipt := LoanReceipt{TxHash: resp.Hash, LoanID: placeholderLoanID, Placeholder: true}
	if resp.Result != nil && resp.Result.Type == "u64" {
		if id, err := strconv.ParseUint(resp.Result.Value, 10, 64); err == nil {
			receipt.LoanID = id
			receipt.Placeholder = false
		}
	}
	if receipt.Placeholder {
		log.Warn().Str("tx_hash", resp.Hash).Msg("ledger relay returned no loan id, storing placeholder")
	}
	return receipt, nil
}

func (g *HTTPGateway) SubmitMilestoneValidation(ctx context.Context, req MilestoneValidation) (Receipt, error) {
	resp, err := g.invoke(ctx, "validate_milestone", req.Validator, req.IdempotencyKey, []scArg{
		{Type: "u64", Value: strconv.FormatUint(req.LoanIDOnChain, 10)},
		{Type: "u32", Value: strconv.Itoa(req.MilestoneIndex)},
		{Type: "address", Value: req.Validator.PublicKey},
		{Type: "i128", Value: ToImpactUnits(req.ImpactDelivered)},
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{TxHash: resp.Hash}, nil
}

func (g *HTTPGateway) SubmitLiquidityAddition(ctx context.Context, req LiquidityAddition) (LiquidityReceipt, error) {
	resp, err := g.invoke(ctx, "add_liquidity", req.Investor, "", []scArg{
		{Type: "address", Value: req.Investor.PublicKey},
		{Type: "i128", Value: ToStroops(req.Amount)},
	})
	if err != nil {
		return LiquidityReceipt{}, err
	}
	receipt := LiquidityReceipt{TxHash: resp.Hash, PoolBalance: decimal.Zero}
	if resp.Result != nil && resp.Result.Type == "i128" {
		if bal, err := FromStroops(resp.Result.Value); err == nil {
			receipt.PoolBalance = bal
		}
	}
	return receipt, nil
}

func (g *HTTPGateway) invoke(ctx context.Context, function string, source Signer, idemKey string, args []scArg) (*invokeResponse, error) {
	if g.RelayURL == "" || g.ContractID == "" {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(invokeRequest{
		ContractID:        g.ContractID,
		Function:          function,
		NetworkPassphrase: g.NetworkPassphrase,
		TimeoutSeconds:    int(g.timeout().Seconds()),
		Source:            invokeSource{PublicKey: source.PublicKey, Secret: source.Secret},
		Args:              args,
		IdempotencyKey:    idemKey,
	})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(g.RelayURL, "/") + "/invoke"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	start := time.Now()
	resp, err := g.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", function, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: read response: %w", function, err)
	}
	log.Debug().Str("function", function).Int("status", resp.StatusCode).Int64("ms", time.Since(start).Milliseconds()).Msg("ledger relay call")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ledger %s: status %d body: %s", function, resp.StatusCode, string(respBody))
	}

	var out invokeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("ledger %s: decode response: %w", function, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ledger %s: %s", function, out.Error)
	}
	if out.Status != "" && !strings.EqualFold(out.Status, "SUCCESS") {
		return nil, fmt.Errorf("ledger %s: transaction status %s", function, out.Status)
	}
	if out.Hash == "" {
		return nil, fmt.Errorf("ledger %s: relay returned no transaction hash", function)
	}
	return &out, nil
}

// AccountExists asks Horizon for the account; any failure counts as absent.
func (g *HTTPGateway) AccountExists(ctx context.Context, publicKey string) bool {
	status, err := g.horizonGet(ctx, "/accounts/"+publicKey)
	if err != nil {
		log.Debug().Err(err).Str("public_key", publicKey).Msg("horizon account probe failed")
		return false
	}
	return status == http.StatusOK
}

func (g *HTTPGateway) TransactionExists(ctx context.Context, txHash string) (bool, error) {
	status, err := g.horizonGet(ctx, "/transactions/"+txHash)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("horizon: unexpected status %d", status)
	}
}

func (g *HTTPGateway) horizonGet(ctx context.Context, path string) (int, error) {
	if g.HorizonURL == "" {
		return 0, errors.New("horizon: HORIZON_URL is not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(g.HorizonURL, "/")+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.client().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Ping reports whether the relay answers; used by the health check.
func (g *HTTPGateway) Ping() error {
	if g.RelayURL == "" {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(g.RelayURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := g.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("ledger relay: status %d", resp.StatusCode)
	}
	return nil
}

package payments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sixpath-store-go/internal/catalog"
	"sixpath-store-go/internal/database"
	"sixpath-store-go/internal/models"
	"sixpath-store-go/internal/solana"
	"sixpath-store-go/internal/store"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const testMerchant = "So11111111111111111111111111111111111111112"

// mockChain scripts chain responses per call so retry behavior can be
// asserted deterministically.
type mockChain struct {
	findCalls    int
	outcomeCalls int
	buildCalls   int

	findFn    func(call int) ([]string, error)
	outcomeFn func(call int) (*solana.TransferOutcome, error)
	buildFn   func(ctx context.Context, buyer string, lamports uint64, reference string) (*solanago.Transaction, error)
}

func (m *mockChain) FindReferenceSignatures(ctx context.Context, reference string) ([]string, error) {
	m.findCalls++
	if m.findFn == nil {
		return nil, solana.ErrReferenceNotFound
	}
	return m.findFn(m.findCalls)
}

func (m *mockChain) GetTransferOutcome(ctx context.Context, signature string, minLamports uint64) (*solana.TransferOutcome, error) {
	m.outcomeCalls++
	if m.outcomeFn == nil {
		return nil, solana.ErrTransactionUnavailable
	}
	return m.outcomeFn(m.outcomeCalls)
}

func (m *mockChain) BuildTransferTx(ctx context.Context, buyer string, lamports uint64, reference string) (*solanago.Transaction, error) {
	m.buildCalls++
	if m.buildFn == nil {
		return &solanago.Transaction{}, nil
	}
	return m.buildFn(ctx, buyer, lamports, reference)
}

func (m *mockChain) Merchant() string {
	return testMerchant
}

func successfulTransfer(signature string) func(int) (*solana.TransferOutcome, error) {
	return func(int) (*solana.TransferOutcome, error) {
		return &solana.TransferOutcome{
			Signature:        signature,
			Slot:             100,
			MerchantLamports: 500_000_000,
		}, nil
	}
}

func foundSignatures(signatures ...string) func(int) ([]string, error) {
	return func(int) ([]string, error) {
		return signatures, nil
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.yaml")
	content := `
products:
  - id: 2
    name: "Bag of Tokens"
    token_amount: 300
    price_sol: "0.5"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}
	cat, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	return cat
}

// newTestService wires the payment core against a real sqlite store, a
// scripted chain, and a recording sleep so no test actually waits.
func newTestService(t *testing.T, chain *mockChain, maxRetries int) (*Service, *database.Service, *[]time.Duration) {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "store.db"),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(db.Close)

	service := NewService(db, chain, testCatalog(t), models.PaymentsConfig{
		BackoffBase: time.Second,
		BackoffMax:  8 * time.Second,
		MaxRetries:  maxRetries,
	})

	delays := &[]time.Duration{}
	service.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}

	return service, db, delays
}

func createPending(t *testing.T, db *database.Service, reference, username string) {
	t.Helper()
	_, err := db.CreatePendingPayment(context.Background(), store.PendingPaymentParams{
		Reference:   reference,
		Username:    username,
		ProductID:   2,
		TokenAmount: 300,
		PriceSOL:    decimal.RequireFromString("0.5"),
	})
	if err != nil {
		t.Fatalf("Failed to create pending payment: %v", err)
	}
}

func TestVerify_UnknownReference(t *testing.T) {
	chain := &mockChain{}
	service, _, _ := newTestService(t, chain, 3)

	result, err := service.Verify(context.Background(), "never-seen", -1)
	if !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("Expected ErrUnknownReference, got %v", err)
	}
	if result.State != StateRejected {
		t.Errorf("Expected state rejected, got %s", result.State)
	}
	if chain.findCalls != 0 {
		t.Errorf("Expected zero chain calls for unknown reference, got %d", chain.findCalls)
	}
}

func TestVerify_RetriesThenSucceeds(t *testing.T) {
	chain := &mockChain{
		findFn: func(call int) ([]string, error) {
			if call <= 2 {
				return nil, solana.ErrReferenceNotFound
			}
			return []string{"sig1"}, nil
		},
		outcomeFn: successfulTransfer("sig1"),
	}
	service, db, delays := newTestService(t, chain, 3)
	createPending(t, db, "ref1", "alice")

	ctx := context.Background()
	result, err := service.Verify(ctx, "ref1", 3)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if result.State != StateVerified {
		t.Errorf("Expected state verified, got %s", result.State)
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	if result.Signature != "sig1" {
		t.Errorf("Expected signature sig1, got %s", result.Signature)
	}

	// Backoff schedule: 1s before the 2nd attempt, 2s before the 3rd
	expected := []time.Duration{time.Second, 2 * time.Second}
	if len(*delays) != len(expected) {
		t.Fatalf("Expected %d sleeps, got %d", len(expected), len(*delays))
	}
	for i, want := range expected {
		if (*delays)[i] != want {
			t.Errorf("Sleep %d: expected %s, got %s", i, want, (*delays)[i])
		}
	}

	balance, err := db.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 300 {
		t.Errorf("Expected balance 300, got %d", balance)
	}
	if _, err := db.GetPendingPayment(ctx, "ref1"); !errors.Is(err, store.ErrPendingNotFound) {
		t.Errorf("Expected pending payment to be settled and removed, got %v", err)
	}
}

func TestVerify_OnChainFailureIsTerminal(t *testing.T) {
	chain := &mockChain{
		findFn: foundSignatures("sig1"),
		outcomeFn: func(int) (*solana.TransferOutcome, error) {
			return nil, fmt.Errorf("%w: InstructionError", solana.ErrTransactionFailed)
		},
	}
	service, db, delays := newTestService(t, chain, 3)
	createPending(t, db, "ref1", "alice")

	result, err := service.Verify(context.Background(), "ref1", -1)
	if !errors.Is(err, ErrOnChainRejected) {
		t.Fatalf("Expected ErrOnChainRejected, got %v", err)
	}
	if result.State != StateRejected {
		t.Errorf("Expected state rejected, got %s", result.State)
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}
	if len(*delays) != 0 {
		t.Errorf("Expected no backoff sleeps, got %d", len(*delays))
	}
}

func TestVerify_UnderpaidTransferIsTerminal(t *testing.T) {
	chain := &mockChain{
		findFn: foundSignatures("sig1"),
		outcomeFn: func(int) (*solana.TransferOutcome, error) {
			return nil, fmt.Errorf("%w: merchant received 100 lamports", solana.ErrNoMerchantTransfer)
		},
	}
	service, db, _ := newTestService(t, chain, 3)
	createPending(t, db, "ref1", "alice")

	result, err := service.Verify(context.Background(), "ref1", -1)
	if !errors.Is(err, ErrOnChainRejected) {
		t.Fatalf("Expected ErrOnChainRejected, got %v", err)
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}
}

func TestVerify_Exhausted(t *testing.T) {
	chain := &mockChain{}
	service, db, delays := newTestService(t, chain, 2)
	createPending(t, db, "ref1", "alice")

	ctx := context.Background()
	result, err := service.Verify(ctx, "ref1", 2)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted, got %v", err)
	}
	if result.State != StateExhausted {
		t.Errorf("Expected state exhausted, got %s", result.State)
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts (maxRetries+1), got %d", result.Attempts)
	}
	if len(*delays) != 2 {
		t.Errorf("Expected 2 sleeps, got %d", len(*delays))
	}

	// The intent survives for recovery
	if _, err := db.GetPendingPayment(ctx, "ref1"); err != nil {
		t.Errorf("Expected pending payment to survive exhaustion, got %v", err)
	}
}

func TestVerify_BackoffIsCapped(t *testing.T) {
	chain := &mockChain{}
	service, db, delays := newTestService(t, chain, 5)
	service.cfg.BackoffMax = 2 * time.Second
	createPending(t, db, "ref1", "alice")

	if _, err := service.Verify(context.Background(), "ref1", 5); !errors.Is(err, ErrExhausted) {
		t.Fatalf("Expected ErrExhausted, got %v", err)
	}

	expected := []time.Duration{time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}
	if len(*delays) != len(expected) {
		t.Fatalf("Expected %d sleeps, got %d", len(expected), len(*delays))
	}
	for i, want := range expected {
		if (*delays)[i] != want {
			t.Errorf("Sleep %d: expected %s, got %s", i, want, (*delays)[i])
		}
	}
}

func TestVerify_TransientRPCErrorIsRetried(t *testing.T) {
	chain := &mockChain{
		findFn: func(call int) ([]string, error) {
			if call == 1 {
				return nil, errors.New("rpc: connection reset")
			}
			return []string{"sig1"}, nil
		},
		outcomeFn: successfulTransfer("sig1"),
	}
	service, db, _ := newTestService(t, chain, 3)
	createPending(t, db, "ref1", "alice")

	result, err := service.Verify(context.Background(), "ref1", -1)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", result.Attempts)
	}
}

func TestVerify_SecondCallDoesNotDoubleCredit(t *testing.T) {
	chain := &mockChain{
		findFn:    foundSignatures("sig1"),
		outcomeFn: successfulTransfer("sig1"),
	}
	service, db, _ := newTestService(t, chain, 3)
	createPending(t, db, "ref1", "alice")

	ctx := context.Background()
	if _, err := service.Verify(ctx, "ref1", -1); err != nil {
		t.Fatalf("First Verify failed: %v", err)
	}

	result, err := service.Verify(ctx, "ref1", -1)
	if err != nil {
		t.Fatalf("Second Verify failed: %v", err)
	}
	if result.State != StateVerified {
		t.Errorf("Expected already-settled reference to report verified, got %s", result.State)
	}

	balance, err := db.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 300 {
		t.Errorf("Expected balance to stay 300, got %d", balance)
	}
}

func TestRecover_IdentityMismatch(t *testing.T) {
	chain := &mockChain{
		findFn:    foundSignatures("sig1"),
		outcomeFn: successfulTransfer("sig1"),
	}
	service, db, _ := newTestService(t, chain, 3)
	createPending(t, db, "ref1", "alice")

	_, err := service.Recover(context.Background(), "mallory", "ref1", -1)
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("Expected ErrIdentityMismatch, got %v", err)
	}
	if chain.findCalls != 0 {
		t.Errorf("Expected no chain calls on identity mismatch, got %d", chain.findCalls)
	}

	balance, err := db.GetBalance(context.Background(), "mallory")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("Expected mallory to remain uncredited, got %d", balance)
	}
}

func TestRecover_Succeeds(t *testing.T) {
	chain := &mockChain{
		findFn:    foundSignatures("sig1"),
		outcomeFn: successfulTransfer("sig1"),
	}
	service, db, _ := newTestService(t, chain, 3)
	createPending(t, db, "ref1", "alice")

	result, err := service.Recover(context.Background(), "alice", "ref1", -1)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if result.State != StateVerified {
		t.Errorf("Expected state verified, got %s", result.State)
	}

	balance, err := db.GetBalance(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 300 {
		t.Errorf("Expected balance 300, got %d", balance)
	}
}

func TestInitializePayment_RequiresIdentity(t *testing.T) {
	service, _, _ := newTestService(t, &mockChain{}, 3)

	_, err := service.InitializePayment(context.Background(), "alice", "", 2)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Expected ErrNotConnected, got %v", err)
	}
}

func TestInitializePayment_UnknownProduct(t *testing.T) {
	service, _, _ := newTestService(t, &mockChain{}, 3)

	_, err := service.InitializePayment(context.Background(), "alice", testMerchant, 99)
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestInitializePayment_PersistsIntentBeforeBuilding(t *testing.T) {
	var pendingAtBuildTime bool
	chain := &mockChain{}
	service, db, _ := newTestService(t, chain, 3)

	chain.buildFn = func(ctx context.Context, buyer string, lamports uint64, reference string) (*solanago.Transaction, error) {
		_, err := db.GetPendingPayment(ctx, reference)
		pendingAtBuildTime = err == nil
		return &solanago.Transaction{}, nil
	}

	ctx := context.Background()
	intent, err := service.InitializePayment(ctx, "alice", testMerchant, 2)
	if err != nil {
		t.Fatalf("InitializePayment failed: %v", err)
	}

	if !pendingAtBuildTime {
		t.Error("Expected pending payment to exist before the transaction was built")
	}

	pending, err := db.GetPendingPayment(ctx, intent.Reference)
	if err != nil {
		t.Fatalf("Expected pending payment to exist, got %v", err)
	}
	if pending.Username != "alice" || pending.TokenAmount != 300 {
		t.Errorf("Unexpected pending record: %+v", pending)
	}
}

func TestInitializePayment_CleansUpOnBuildFailure(t *testing.T) {
	chain := &mockChain{
		buildFn: func(ctx context.Context, buyer string, lamports uint64, reference string) (*solanago.Transaction, error) {
			return nil, errors.New("blockhash fetch failed")
		},
	}
	service, db, _ := newTestService(t, chain, 3)

	ctx := context.Background()
	if _, err := service.InitializePayment(ctx, "alice", testMerchant, 2); err == nil {
		t.Fatal("Expected InitializePayment to fail")
	}

	// No orphaned intent: nothing was submitted
	if purged, err := db.PurgeStale(ctx, 0); err != nil {
		t.Fatalf("PurgeStale failed: %v", err)
	} else if purged != 0 {
		t.Errorf("Expected no pending payments left behind, found %d", purged)
	}
}

func TestInitializePaymentURL(t *testing.T) {
	service, db, _ := newTestService(t, &mockChain{}, 3)

	ctx := context.Background()
	reference, payURL, err := service.InitializePaymentURL(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("InitializePaymentURL failed: %v", err)
	}

	if !strings.Contains(payURL, "reference="+reference) {
		t.Errorf("Expected URL to carry the reference, got %s", payURL)
	}
	if !strings.HasPrefix(payURL, "solana:"+testMerchant) {
		t.Errorf("Expected URL addressed to the merchant, got %s", payURL)
	}

	if _, err := db.GetPendingPayment(ctx, reference); err != nil {
		t.Errorf("Expected pending payment to exist, got %v", err)
	}
}

func TestCheckStatus(t *testing.T) {
	chain := &mockChain{
		findFn:    foundSignatures("sig1"),
		outcomeFn: successfulTransfer("sig1"),
	}
	service, db, _ := newTestService(t, chain, 3)
	createPending(t, db, "ref1", "alice")

	ctx := context.Background()
	verified, err := service.CheckStatus(ctx, "ref1")
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if verified {
		t.Error("Expected unverified before verification")
	}

	if _, err := service.Verify(ctx, "ref1", -1); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	verified, err = service.CheckStatus(ctx, "ref1")
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if !verified {
		t.Error("Expected verified after verification")
	}
}

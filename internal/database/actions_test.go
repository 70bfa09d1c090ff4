package database

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	testVault  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	otherVault = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testSender = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func setupTestDb(t *testing.T) (*Service, func()) {
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return service, service.Close
}

func recordTestAction(t *testing.T, service *Service, vault common.Address, action models.ActionType) string {
	t.Helper()
	correlationId := uuid.New().String()
	_, err := service.RecordAction(context.Background(), store.RecordActionParams{
		CorrelationId: correlationId,
		Vault:         vault,
		TargetId:      2,
		Action:        action,
		Sender:        testSender,
	})
	if err != nil {
		t.Fatalf("RecordAction failed: %v", err)
	}
	return correlationId
}

func TestNewService_InvalidConfig(t *testing.T) {
	cases := []models.DatabaseConfig{
		{Path: "", MaxOpenConns: 1, PingTimeout: time.Second},
		{Path: ":memory:", MaxOpenConns: 0, PingTimeout: time.Second},
		{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: -1, PingTimeout: time.Second},
		{Path: ":memory:", MaxOpenConns: 1, PingTimeout: 0},
	}
	for i, cfg := range cases {
		if _, err := NewService(context.Background(), cfg); err == nil {
			t.Errorf("case %d: expected config error", i)
		}
	}
}

func TestRecordAction_Pending(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	correlationId := uuid.New().String()
	record, err := service.RecordAction(ctx, store.RecordActionParams{
		CorrelationId: correlationId,
		Vault:         testVault,
		TargetId:      2,
		Action:        models.ActionSubmitClaim,
		Amount:        big.NewInt(10_000_000_000),
		Sender:        testSender,
	})
	if err != nil {
		t.Fatalf("RecordAction failed: %v", err)
	}

	if record.Status != models.ActionPending {
		t.Errorf("Expected status pending, got %s", record.Status)
	}
	if record.Amount != "10000000000" {
		t.Errorf("Expected amount 10000000000, got %s", record.Amount)
	}
	if record.TargetId != 2 {
		t.Errorf("Expected target id 2, got %d", record.TargetId)
	}
	if record.ReceiptId != nil {
		t.Errorf("Expected no receipt id, got %d", *record.ReceiptId)
	}
	if record.Vault != testVault.Hex() {
		t.Errorf("Expected vault %s, got %s", testVault.Hex(), record.Vault)
	}
}

func TestRecordAction_Duplicate(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	params := store.RecordActionParams{
		CorrelationId: uuid.New().String(),
		Vault:         testVault,
		Action:        models.ActionCheckClaim,
		Sender:        testSender,
	}
	if _, err := service.RecordAction(ctx, params); err != nil {
		t.Fatalf("First RecordAction failed: %v", err)
	}

	_, err := service.RecordAction(ctx, params)
	if !errors.Is(err, store.ErrDuplicateAction) {
		t.Fatalf("Expected ErrDuplicateAction, got %v", err)
	}
	if !errors.Is(err, models.ErrStateConflict) {
		t.Errorf("Expected state conflict category, got %v", err)
	}
}

func TestCompleteAction(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	correlationId := recordTestAction(t, service, testVault, models.ActionCheckClaim)

	receiptId := uint64(7)
	err := service.CompleteAction(ctx, store.CompleteActionParams{
		CorrelationId: correlationId,
		Status:        models.ActionSucceeded,
		TxHash:        "0xabc",
		ReceiptId:     &receiptId,
	})
	if err != nil {
		t.Fatalf("CompleteAction failed: %v", err)
	}

	record, err := service.GetAction(ctx, correlationId)
	if err != nil {
		t.Fatalf("GetAction failed: %v", err)
	}
	if record.Status != models.ActionSucceeded {
		t.Errorf("Expected status succeeded, got %s", record.Status)
	}
	if record.ReceiptId == nil || *record.ReceiptId != 7 {
		t.Errorf("Expected receipt id 7, got %v", record.ReceiptId)
	}
	if record.TxHash != "0xabc" {
		t.Errorf("Expected tx hash 0xabc, got %s", record.TxHash)
	}

	// A finalized action cannot be completed again
	err = service.CompleteAction(ctx, store.CompleteActionParams{
		CorrelationId: correlationId,
		Status:        models.ActionFailed,
		Reason:        "late failure",
	})
	if !errors.Is(err, store.ErrFinalizedAction) {
		t.Errorf("Expected ErrFinalizedAction, got %v", err)
	}
}

func TestCompleteAction_Errors(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	err := service.CompleteAction(ctx, store.CompleteActionParams{
		CorrelationId: "missing",
		Status:        models.ActionFailed,
	})
	if !errors.Is(err, store.ErrActionNotFound) {
		t.Errorf("Expected ErrActionNotFound, got %v", err)
	}

	correlationId := recordTestAction(t, service, testVault, models.ActionCheckClaim)
	err = service.CompleteAction(ctx, store.CompleteActionParams{
		CorrelationId: correlationId,
		Status:        models.ActionPending,
	})
	if !errors.Is(err, models.ErrInputValidation) {
		t.Errorf("Expected input validation error for non-terminal status, got %v", err)
	}
}

func TestGetActionHistory_Filters(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	recordTestAction(t, service, testVault, models.ActionCheckClaim)
	recordTestAction(t, service, testVault, models.ActionExerciseClaim)
	recordTestAction(t, service, otherVault, models.ActionCheckClaim)

	all, err := service.GetActionHistory(ctx, store.HistoryFilter{})
	if err != nil {
		t.Fatalf("GetActionHistory failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 actions, got %d", len(all))
	}

	byVault, err := service.GetActionHistory(ctx, store.HistoryFilter{Vault: &testVault})
	if err != nil {
		t.Fatalf("GetActionHistory by vault failed: %v", err)
	}
	if len(byVault) != 2 {
		t.Errorf("Expected 2 actions for vault, got %d", len(byVault))
	}

	byAction, err := service.GetActionHistory(ctx, store.HistoryFilter{Action: models.ActionCheckClaim})
	if err != nil {
		t.Fatalf("GetActionHistory by action failed: %v", err)
	}
	if len(byAction) != 2 {
		t.Errorf("Expected 2 check_claim actions, got %d", len(byAction))
	}

	page, err := service.GetActionHistory(ctx, store.HistoryFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("GetActionHistory paged failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("Expected 1 action in page, got %d", len(page))
	}
}

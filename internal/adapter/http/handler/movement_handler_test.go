package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/dto"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

type recorderStub struct {
	recordFn func(ctx context.Context, input usecase.RecordMovementInput) (*domain.Movement, error)
}

func (s *recorderStub) Record(ctx context.Context, input usecase.RecordMovementInput) (*domain.Movement, error) {
	return s.recordFn(ctx, input)
}

type readerStub struct {
	getFn  func(ctx context.Context, id string) (*domain.Movement, error)
	listFn func(ctx context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error)
}

func (s *readerStub) Get(ctx context.Context, id string) (*domain.Movement, error) {
	return s.getFn(ctx, id)
}

func (s *readerStub) ListByStream(ctx context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error) {
	return s.listFn(ctx, pointID, currencyID, limit, offset)
}

type reverserStub struct {
	reverseFn func(ctx context.Context, movementID, actorID, reason string) (*domain.Movement, error)
}

func (s *reverserStub) ReverseMovement(ctx context.Context, movementID, actorID, reason string) (*domain.Movement, error) {
	return s.reverseFn(ctx, movementID, actorID, reason)
}

func newMovementHandler(recorder *recorderStub, reader *readerStub, reverser *reverserStub) *MovementHandler {
	if recorder == nil {
		recorder = &recorderStub{recordFn: func(ctx context.Context, input usecase.RecordMovementInput) (*domain.Movement, error) {
			return &domain.Movement{}, nil
		}}
	}
	if reader == nil {
		reader = &readerStub{
			getFn: func(ctx context.Context, id string) (*domain.Movement, error) { return &domain.Movement{ID: id}, nil },
			listFn: func(ctx context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error) {
				return []*domain.Movement{}, nil
			},
		}
	}
	if reverser == nil {
		reverser = &reverserStub{reverseFn: func(ctx context.Context, movementID, actorID, reason string) (*domain.Movement, error) {
			return &domain.Movement{}, nil
		}}
	}
	return NewMovementHandler(recorder, reader, reverser)
}

func TestMovementHandler_Record_Success(t *testing.T) {
	movement := &domain.Movement{
		ID:         "mov-1",
		PointID:    "pt-1",
		CurrencyID: "usd",
		Type:       domain.MovementIncome,
		Amount:     decimal.NewFromInt(100),
	}
	var captured usecase.RecordMovementInput

	h := newMovementHandler(&recorderStub{
		recordFn: func(ctx context.Context, input usecase.RecordMovementInput) (*domain.Movement, error) {
			captured = input
			return movement, nil
		},
	}, nil, nil)

	body, _ := json.Marshal(dto.RecordMovementRequest{
		PointID:    "pt-1",
		CurrencyID: "usd",
		Type:       "INCOME",
		Amount:     decimal.NewFromInt(100),
	})

	req := httptest.NewRequest(http.MethodPost, "/movements", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Record(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if captured.PointID != "pt-1" || captured.Type != domain.MovementIncome {
		t.Fatalf("expected input to match request, got %+v", captured)
	}

	var resp dto.MovementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "mov-1" {
		t.Fatalf("expected movement ID mov-1, got %s", resp.ID)
	}
}

func TestMovementHandler_Record_InvalidBody(t *testing.T) {
	h := newMovementHandler(&recorderStub{
		recordFn: func(ctx context.Context, input usecase.RecordMovementInput) (*domain.Movement, error) {
			t.Fatal("Record should not be called")
			return nil, nil
		},
	}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/movements", bytes.NewBufferString("{bad json"))
	rec := httptest.NewRecorder()

	h.Record(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMovementHandler_Record_InsufficientBalance(t *testing.T) {
	h := newMovementHandler(&recorderStub{
		recordFn: func(ctx context.Context, input usecase.RecordMovementInput) (*domain.Movement, error) {
			return nil, domain.ErrInsufficientBalance
		},
	}, nil, nil)

	body, _ := json.Marshal(dto.RecordMovementRequest{
		PointID:    "pt-1",
		CurrencyID: "usd",
		Type:       "EXPENSE",
		Amount:     decimal.NewFromInt(5000),
	})
	req := httptest.NewRequest(http.MethodPost, "/movements", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Record(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestMovementHandler_Record_UnknownType(t *testing.T) {
	h := newMovementHandler(&recorderStub{
		recordFn: func(ctx context.Context, input usecase.RecordMovementInput) (*domain.Movement, error) {
			return nil, domain.ErrInvalidMovementType
		},
	}, nil, nil)

	body, _ := json.Marshal(dto.RecordMovementRequest{
		PointID:    "pt-1",
		CurrencyID: "usd",
		Type:       "SALDO_LEGACY",
		Amount:     decimal.NewFromInt(10),
	})
	req := httptest.NewRequest(http.MethodPost, "/movements", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Record(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMovementHandler_Get_NotFound(t *testing.T) {
	h := newMovementHandler(nil, &readerStub{
		getFn: func(ctx context.Context, id string) (*domain.Movement, error) {
			return nil, domain.ErrMovementNotFound
		},
		listFn: func(ctx context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error) {
			return nil, nil
		},
	}, nil)

	r := chi.NewRouter()
	r.Get("/movements/{id}", h.Get)

	req := httptest.NewRequest(http.MethodGet, "/movements/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMovementHandler_ListByStream(t *testing.T) {
	var gotPoint, gotCurrency string
	var gotLimit int

	h := newMovementHandler(nil, &readerStub{
		getFn: func(ctx context.Context, id string) (*domain.Movement, error) { return nil, nil },
		listFn: func(ctx context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error) {
			gotPoint, gotCurrency, gotLimit = pointID, currencyID, limit
			return []*domain.Movement{{ID: "mov-1"}, {ID: "mov-2"}}, nil
		},
	}, nil)

	r := chi.NewRouter()
	r.Get("/balances/{pointID}/{currencyID}/movements", h.ListByStream)

	req := httptest.NewRequest(http.MethodGet, "/balances/pt-1/usd/movements?limit=5", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotPoint != "pt-1" || gotCurrency != "usd" || gotLimit != 5 {
		t.Fatalf("expected pt-1/usd limit 5, got %s/%s limit %d", gotPoint, gotCurrency, gotLimit)
	}

	var resp []*dto.MovementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(resp))
	}
}

func TestMovementHandler_Reverse_Success(t *testing.T) {
	var gotID, gotActor string

	h := newMovementHandler(nil, nil, &reverserStub{
		reverseFn: func(ctx context.Context, movementID, actorID, reason string) (*domain.Movement, error) {
			gotID, gotActor = movementID, actorID
			return &domain.Movement{ID: "rev-1", Type: domain.MovementAdjustment}, nil
		},
	})

	r := chi.NewRouter()
	r.Post("/movements/{id}/reverse", h.Reverse)

	body, _ := json.Marshal(dto.ReverseMovementRequest{ActorID: "admin-1", Reason: "posted in error"})
	req := httptest.NewRequest(http.MethodPost, "/movements/mov-9/reverse", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if gotID != "mov-9" || gotActor != "admin-1" {
		t.Fatalf("expected mov-9/admin-1, got %s/%s", gotID, gotActor)
	}
}

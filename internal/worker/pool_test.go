package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports/mocks"
	"tollway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func testDelivery(attempt int64) *domain.Delivery {
	plate := "P-123ABC"
	return &domain.Delivery{
		MessageID: "1700000000000-0",
		Attempt:   attempt,
		Event: domain.TollEvent{
			EventID:     "evt-1",
			Plate:       &plate,
			TollPointID: "ZONE_A",
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		},
	}
}

func newTestPool(t *testing.T, maxDeliveries int64) (*Pool, *mocks.MockEventQueue, *mocks.MockTollProcessor) {
	ctrl := gomock.NewController(t)
	queue := mocks.NewMockEventQueue(ctrl)
	processor := mocks.NewMockTollProcessor(ctrl)
	p := New(queue, processor, Config{Concurrency: 2, MaxDeliveries: maxDeliveries, EventTimeout: time.Second}, zerolog.Nop())
	p.errBackoff = time.Millisecond
	return p, queue, processor
}

func TestHandle_SuccessAcks(t *testing.T) {
	p, queue, processor := newTestPool(t, 10)
	d := testDelivery(1)

	processor.EXPECT().Process(gomock.Any(), d.Event).
		Return(&domain.Transaction{ID: uuid.New(), Scenario: domain.ScenarioRegisteredDirect}, nil)
	queue.EXPECT().Ack(gomock.Any(), d).Return(nil)

	p.Handle(context.Background(), d)
}

func TestHandle_TerminalErrorAcks(t *testing.T) {
	p, queue, processor := newTestPool(t, 10)
	d := testDelivery(1)

	processor.EXPECT().Process(gomock.Any(), d.Event).Return(nil, apperror.ErrTagPlateMismatch())
	queue.EXPECT().Ack(gomock.Any(), d).Return(nil)

	p.Handle(context.Background(), d)
}

func TestHandle_TransientErrorLeavesPending(t *testing.T) {
	p, _, processor := newTestPool(t, 10)
	d := testDelivery(2)

	// no Ack expected
	processor.EXPECT().Process(gomock.Any(), d.Event).
		Return(nil, apperror.ErrPersistence(errors.New("connection reset")))

	p.Handle(context.Background(), d)
}

func TestHandle_ExceededDeliveriesDeadLetters(t *testing.T) {
	p, queue, _ := newTestPool(t, 3)
	d := testDelivery(4)

	queue.EXPECT().DeadLetter(gomock.Any(), d, "max deliveries exceeded").Return(nil)

	p.Handle(context.Background(), d)
}

func TestHandle_AppliesEventTimeout(t *testing.T) {
	p, queue, processor := newTestPool(t, 0)
	d := testDelivery(1)

	processor.EXPECT().Process(gomock.Any(), d.Event).
		DoAndReturn(func(ctx context.Context, _ domain.TollEvent) (*domain.Transaction, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return &domain.Transaction{ID: uuid.New()}, nil
		})
	queue.EXPECT().Ack(gomock.Any(), d).Return(nil)

	p.Handle(context.Background(), d)
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	p, queue, processor := newTestPool(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handed int32
	queue.EXPECT().Receive(gomock.Any()).
		DoAndReturn(func(ctx context.Context) (*domain.Delivery, error) {
			switch atomic.AddInt32(&handed, 1) {
			case 1:
				return testDelivery(1), nil
			case 2:
				return nil, errors.New("redis: connection refused")
			default:
				cancel()
				<-ctx.Done()
				return nil, ctx.Err()
			}
		}).MinTimes(3)
	processor.EXPECT().Process(gomock.Any(), gomock.Any()).Return(&domain.Transaction{ID: uuid.New()}, nil)
	queue.EXPECT().Ack(gomock.Any(), gomock.Any()).Return(nil)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

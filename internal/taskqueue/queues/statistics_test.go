package queues

import (
	"context"
	"encoding/json"
	"testing"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

func TestStatisticsHandlerIncrementsWarehouseCounter(t *testing.T) {
	warehouse := ids.NewWarehouseID()
	tabular := ids.NewTabularID()
	stats := &fakeStatisticsRepo{}
	h := &StatisticsHandler{Transactor: fakeTransactor{}, Statistics: stats}

	payload, _ := json.Marshal(statisticsPayload{TabularID: tabular.String()})
	task := &catalogstore.Task{TaskID: ids.NewTaskID(), WarehouseID: warehouse, Payload: payload}

	if err := h.Handle(context.Background(), task, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if stats.increments[warehouse.String()] != 1 {
		t.Fatalf("commit counter = %d, want 1", stats.increments[warehouse.String()])
	}

	if err := h.Handle(context.Background(), task, nil); err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if stats.increments[warehouse.String()] != 2 {
		t.Fatalf("commit counter after two firings = %d, want 2", stats.increments[warehouse.String()])
	}
}

func TestStatisticsEventInputKeyedByTriggeringTask(t *testing.T) {
	warehouse := ids.NewWarehouseID()
	tabular := ids.NewTabularID()
	taskA := ids.NewTaskID()
	taskB := ids.NewTaskID()

	inputA, err := StatisticsEventInput(warehouse, tabular, taskA)
	if err != nil {
		t.Fatalf("StatisticsEventInput: %v", err)
	}
	inputB, err := StatisticsEventInput(warehouse, tabular, taskB)
	if err != nil {
		t.Fatalf("StatisticsEventInput: %v", err)
	}
	if inputA.IdempotencyKey == inputB.IdempotencyKey {
		t.Fatal("two distinct commits on the same tabular must not share an idempotency key")
	}

	repeat, err := StatisticsEventInput(warehouse, tabular, taskA)
	if err != nil {
		t.Fatalf("StatisticsEventInput: %v", err)
	}
	if repeat.IdempotencyKey != inputA.IdempotencyKey {
		t.Fatal("retries of the same triggering task must share an idempotency key")
	}
}

package queues

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
)

func TestTaskLogCleanupHandlerUsesDefaultsWhenPayloadEmpty(t *testing.T) {
	tasks := &fakeTaskRepo{}
	warehouse := ids.NewWarehouseID()
	h := &TaskLogCleanupHandler{Transactor: fakeTransactor{}, TaskLogs: fakeTaskLogRepo{}, Tasks: tasks}

	before := deletedOlderThanCalls
	task := &catalogstore.Task{TaskID: ids.NewTaskID(), WarehouseID: warehouse}
	if err := h.Handle(context.Background(), task, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if deletedOlderThanCalls != before+1 {
		t.Fatalf("DeleteOlderThan was not invoked")
	}
	if len(tasks.enqueued) != 1 {
		t.Fatalf("expected the handler to reschedule itself, got %v", tasks.enqueued)
	}
	resched := tasks.enqueued[0]
	if resched.QueueName != h.QueueName() {
		t.Fatalf("rescheduled queue = %q, want %q", resched.QueueName, h.QueueName())
	}
	var decoded taskLogCleanupPayload
	if err := json.Unmarshal(resched.Payload, &decoded); err != nil {
		t.Fatalf("decode rescheduled payload: %v", err)
	}
	if decoded.RetentionSeconds != int64(defaultTaskLogRetention.Seconds()) {
		t.Fatalf("rescheduled retention = %d, want default %d", decoded.RetentionSeconds, int64(defaultTaskLogRetention.Seconds()))
	}
	if resched.ScheduledFor.Before(time.Now().Add(defaultTaskLogPeriod - time.Minute)) {
		t.Fatalf("rescheduled run time %s is not ~one period out", resched.ScheduledFor)
	}
}

func TestTaskLogCleanupHandlerHonorsPayloadOverride(t *testing.T) {
	tasks := &fakeTaskRepo{}
	warehouse := ids.NewWarehouseID()
	h := &TaskLogCleanupHandler{Transactor: fakeTransactor{}, TaskLogs: fakeTaskLogRepo{}, Tasks: tasks}

	payload, _ := json.Marshal(taskLogCleanupPayload{RetentionSeconds: 3600, PeriodSeconds: 60})
	task := &catalogstore.Task{TaskID: ids.NewTaskID(), WarehouseID: warehouse, Payload: payload}
	if err := h.Handle(context.Background(), task, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(tasks.enqueued) != 1 {
		t.Fatalf("expected exactly one rescheduled task, got %v", tasks.enqueued)
	}
	var decoded taskLogCleanupPayload
	if err := json.Unmarshal(tasks.enqueued[0].Payload, &decoded); err != nil {
		t.Fatalf("decode rescheduled payload: %v", err)
	}
	if decoded.RetentionSeconds != 3600 || decoded.PeriodSeconds != 60 {
		t.Fatalf("rescheduled payload = %+v, want retention=3600 period=60", decoded)
	}
	if tasks.enqueued[0].ScheduledFor.After(time.Now().Add(61 * time.Second)) {
		t.Fatalf("rescheduled run time %s is later than the configured 60s period", tasks.enqueued[0].ScheduledFor)
	}
}

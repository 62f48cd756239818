package queues

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/taskqueue"
)

func TestExpirationHandlerHardDeletesAndSkipsPurgeWhenNotRequested(t *testing.T) {
	tabularID := ids.NewTabularID()
	warehouse := ids.NewWarehouseID()
	tabulars := &fakeTabularRepo{byID: map[ids.TabularID]*catalogstore.Tabular{
		tabularID: {TabularID: tabularID, Location: "file:///tmp/wh/t1"},
	}}
	tasks := &fakeTaskRepo{}
	h := &ExpirationHandler{Transactor: fakeTransactor{}, Tabulars: tabulars, Tasks: tasks}

	payload, _ := json.Marshal(expirationPayload{TabularID: tabularID.String(), Location: "file:///tmp/wh/t1"})
	task := &catalogstore.Task{TaskID: ids.NewTaskID(), WarehouseID: warehouse, Payload: payload}

	if err := h.Handle(context.Background(), task, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, ok := tabulars.byID[tabularID]; ok {
		t.Fatal("expired tabular should have been hard-deleted")
	}
	if len(tasks.enqueued) != 0 {
		t.Fatalf("expected no follow-up task, got %v", tasks.enqueued)
	}
}

func TestExpirationHandlerEnqueuesPurgeWhenRequested(t *testing.T) {
	tabularID := ids.NewTabularID()
	warehouse := ids.NewWarehouseID()
	tabulars := &fakeTabularRepo{byID: map[ids.TabularID]*catalogstore.Tabular{
		tabularID: {TabularID: tabularID, Location: "file:///tmp/wh/t1"},
	}}
	tasks := &fakeTaskRepo{}
	h := &ExpirationHandler{Transactor: fakeTransactor{}, Tabulars: tabulars, Tasks: tasks}

	payload, _ := json.Marshal(expirationPayload{TabularID: tabularID.String(), Location: "file:///tmp/wh/t1", PurgeRequested: true})
	parentTaskID := ids.NewTaskID()
	task := &catalogstore.Task{TaskID: parentTaskID, WarehouseID: warehouse, ScheduledFor: time.Now(), Payload: payload}

	if err := h.Handle(context.Background(), task, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(tasks.enqueued) != 1 {
		t.Fatalf("expected one follow-up purge task, got %v", tasks.enqueued)
	}
	purge := tasks.enqueued[0]
	if purge.QueueName != taskqueue.QueueNameTabularPurge {
		t.Fatalf("follow-up queue = %q, want %q", purge.QueueName, taskqueue.QueueNameTabularPurge)
	}
	if purge.ParentTaskID == nil || *purge.ParentTaskID != parentTaskID {
		t.Fatalf("follow-up ParentTaskID = %v, want %s", purge.ParentTaskID, parentTaskID)
	}
	var decoded purgePayload
	if err := json.Unmarshal(purge.Payload, &decoded); err != nil {
		t.Fatalf("decode purge payload: %v", err)
	}
	if decoded.Location != "file:///tmp/wh/t1" {
		t.Fatalf("purge payload location = %q, want %q", decoded.Location, "file:///tmp/wh/t1")
	}
}

func TestExpirationHandlerSkipsAlreadyGoneTabular(t *testing.T) {
	tabularID := ids.NewTabularID()
	tabulars := &fakeTabularRepo{byID: map[ids.TabularID]*catalogstore.Tabular{}}
	tasks := &fakeTaskRepo{}
	h := &ExpirationHandler{Transactor: fakeTransactor{}, Tabulars: tabulars, Tasks: tasks}

	payload, _ := json.Marshal(expirationPayload{TabularID: tabularID.String(), PurgeRequested: true})
	task := &catalogstore.Task{TaskID: ids.NewTaskID(), Payload: payload}

	if err := h.Handle(context.Background(), task, nil); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(tasks.enqueued) != 0 {
		t.Fatal("an already-gone tabular must not enqueue a purge")
	}
}

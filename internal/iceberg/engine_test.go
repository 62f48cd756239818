package iceberg

import (
	"context"
	"testing"

	"catalog.icecat.io/internal/authz"
	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/iceberg/metadata"
	"catalog.icecat.io/internal/ids"
)

func TestCreateTableNonStagedWritesMetadataAndAssignsLocation(t *testing.T) {
	wh, ns := testWarehouseAndNamespace(catalogstore.DeleteModeSoft)
	engine, tabulars, _ := newTestEngine(wh, ns)
	ctx := context.Background()

	result, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, authz.Metadata{IsAdmin: true}, CreateTableRequest{
		Namespace: ns.NamespaceID,
		Name:      "orders",
	})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if result.MetadataLocation == "" {
		t.Fatal("expected a metadata location for a non-staged create")
	}
	if len(tabulars.byID) != 1 {
		t.Fatalf("expected one tabular row, got %d", len(tabulars.byID))
	}
}

func TestCreateTableStagedHasNoMetadataLocation(t *testing.T) {
	wh, ns := testWarehouseAndNamespace(catalogstore.DeleteModeSoft)
	engine, tabulars, _ := newTestEngine(wh, ns)
	ctx := context.Background()

	result, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, authz.Metadata{IsAdmin: true}, CreateTableRequest{
		Namespace:   ns.NamespaceID,
		Name:        "staged_orders",
		StageCreate: true,
	})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if result.MetadataLocation != "" {
		t.Fatal("expected no metadata location for a staged create")
	}
	for _, tab := range tabulars.byID {
		if tab.Name == "staged_orders" && tab.MetadataLocation != nil {
			t.Error("staged tabular row should have a nil metadata location")
		}
	}
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	wh, ns := testWarehouseAndNamespace(catalogstore.DeleteModeSoft)
	engine, _, _ := newTestEngine(wh, ns)
	ctx := context.Background()
	meta := authz.Metadata{IsAdmin: true}

	req := CreateTableRequest{Namespace: ns.NamespaceID, Name: "dup"}
	if _, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, meta, req); err != nil {
		t.Fatalf("first CreateTable: %v", err)
	}
	if _, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, meta, req); err == nil {
		t.Fatal("expected second CreateTable with same name to fail")
	}
}

func TestCreateTableRejectsOnInactiveWarehouse(t *testing.T) {
	wh, ns := testWarehouseAndNamespace(catalogstore.DeleteModeSoft)
	wh.Status = catalogstore.WarehouseInactive
	engine, _, _ := newTestEngine(wh, ns)
	ctx := context.Background()

	_, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, authz.Metadata{IsAdmin: true}, CreateTableRequest{
		Namespace: ns.NamespaceID, Name: "orders",
	})
	if err == nil {
		t.Fatal("expected create on an inactive warehouse to fail (invariant I5)")
	}
}

func TestCommitTableAppliesUpdatesAndBumpsLastUpdatedMs(t *testing.T) {
	wh, ns := testWarehouseAndNamespace(catalogstore.DeleteModeSoft)
	engine, tabulars, _ := newTestEngine(wh, ns)
	ctx := context.Background()
	meta := authz.Metadata{IsAdmin: true}

	created, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, meta, CreateTableRequest{Namespace: ns.NamespaceID, Name: "orders"})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	var tabularID = firstTabularID(tabulars)

	resp, err := engine.CommitTable(ctx, fakeAdminAuthorizer{}, meta, CommitTableRequest{
		TabularID: tabularID,
		Updates: []metadata.Update{
			metadata.AddSnapshot{Snapshot: metadata.Snapshot{SnapshotID: 1, SequenceNum: 1, ManifestList: "file:///tmp/ml-1"}},
			metadata.SetSnapshotRef{Ref: "main", Spec: metadata.SnapshotRef{SnapshotID: 1, Type: "branch"}},
		},
	})
	if err != nil {
		t.Fatalf("CommitTable: %v", err)
	}
	if resp.Metadata.CurrentSnapshot != 1 {
		t.Errorf("CurrentSnapshot = %d, want 1", resp.Metadata.CurrentSnapshot)
	}
	if resp.Metadata.LastUpdatedMs <= created.Metadata.LastUpdatedMs {
		t.Error("expected last-updated-ms to strictly increase across commits")
	}
}

func TestDropTableSoftModeSchedulesExpirationAndUndropCancelsIt(t *testing.T) {
	wh, ns := testWarehouseAndNamespace(catalogstore.DeleteModeSoft)
	engine, tabulars, tasks := newTestEngine(wh, ns)
	ctx := context.Background()
	meta := authz.Metadata{IsAdmin: true}

	_, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, meta, CreateTableRequest{Namespace: ns.NamespaceID, Name: "orders"})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tabularID := firstTabularID(tabulars)

	if err := engine.DropTable(ctx, fakeAdminAuthorizer{}, meta, DropTableRequest{TabularID: tabularID, PurgeRequested: true}); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	tab := tabulars.byID[tabularID]
	if tab.DeletedAt == nil {
		t.Fatal("expected deleted_at to be set after soft delete")
	}
	if tab.CleanupTaskID == nil {
		t.Fatal("expected a cleanup task to be scheduled")
	}
	scheduled := tasks.tasks[*tab.CleanupTaskID]
	if scheduled.Status != catalogstore.TaskScheduled {
		t.Fatalf("expected scheduled expiration task, got status %s", scheduled.Status)
	}

	if err := engine.UndropTable(ctx, fakeAdminAuthorizer{}, meta, tabularID); err != nil {
		t.Fatalf("UndropTable: %v", err)
	}
	if tab.DeletedAt != nil {
		t.Error("expected deleted_at to be cleared after undrop")
	}
	if scheduled.Status != catalogstore.TaskCancelled {
		t.Errorf("expected expiration task cancelled after undrop, got %s", scheduled.Status)
	}
}

func TestDropTableHardModeDeletesRowSynchronously(t *testing.T) {
	wh, ns := testWarehouseAndNamespace(catalogstore.DeleteModeHard)
	engine, tabulars, tasks := newTestEngine(wh, ns)
	ctx := context.Background()
	meta := authz.Metadata{IsAdmin: true}

	_, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, meta, CreateTableRequest{Namespace: ns.NamespaceID, Name: "orders"})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tabularID := firstTabularID(tabulars)

	if err := engine.DropTable(ctx, fakeAdminAuthorizer{}, meta, DropTableRequest{TabularID: tabularID, PurgeRequested: true}); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, ok := tabulars.byID[tabularID]; ok {
		t.Fatal("expected hard delete to remove the row entirely")
	}
	foundPurge := false
	for _, task := range tasks.tasks {
		if task.QueueName == QueueTabularPurge {
			foundPurge = true
		}
	}
	if !foundPurge {
		t.Error("expected a tabular_purge task to be enqueued")
	}
}

func TestRenameTableMovesRowToNewNamespaceAndName(t *testing.T) {
	wh, ns := testWarehouseAndNamespace(catalogstore.DeleteModeSoft)
	engine, tabulars, _ := newTestEngine(wh, ns)
	ctx := context.Background()
	meta := authz.Metadata{IsAdmin: true}

	_, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, meta, CreateTableRequest{Namespace: ns.NamespaceID, Name: "orders"})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tabularID := firstTabularID(tabulars)

	if err := engine.RenameTable(ctx, fakeAdminAuthorizer{}, meta, RenameTableRequest{
		TabularID: tabularID, DestNamespace: ns.NamespaceID, DestName: "orders_v2",
	}); err != nil {
		t.Fatalf("RenameTable: %v", err)
	}
	if tabulars.byID[tabularID].Name != "orders_v2" {
		t.Errorf("name = %q, want orders_v2", tabulars.byID[tabularID].Name)
	}
}

func TestCommitTransactionLocksTablesInDeterministicOrder(t *testing.T) {
	wh, ns := testWarehouseAndNamespace(catalogstore.DeleteModeSoft)
	engine, tabulars, _ := newTestEngine(wh, ns)
	ctx := context.Background()
	meta := authz.Metadata{IsAdmin: true}

	names := []string{"a", "b", "c"}
	for _, name := range names {
		if _, err := engine.CreateTable(ctx, fakeAdminAuthorizer{}, meta, CreateTableRequest{Namespace: ns.NamespaceID, Name: name}); err != nil {
			t.Fatalf("CreateTable %s: %v", name, err)
		}
	}

	var changes []TransactionTableChange
	for _, tab := range tabulars.byID {
		changes = append(changes, TransactionTableChange{
			TabularID: tab.TabularID,
			Updates: []metadata.Update{
				metadata.SetProperties{Properties: map[string]string{"committed": "true"}},
			},
		})
	}

	results, err := engine.CommitTransaction(ctx, fakeAdminAuthorizer{}, meta, CommitTransactionRequest{TableChanges: changes})
	if err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if len(results) != len(changes) {
		t.Fatalf("expected %d results, got %d", len(changes), len(results))
	}
	for _, r := range results {
		if r.Metadata.Properties["committed"] != "true" {
			t.Error("expected every table_changes entry to be applied")
		}
	}
	if len(tabulars.lockOrder) != len(changes) {
		t.Fatalf("expected %d row locks, got %d", len(changes), len(tabulars.lockOrder))
	}
	for i := 1; i < len(tabulars.lockOrder); i++ {
		if tabulars.lockOrder[i-1].String() >= tabulars.lockOrder[i].String() {
			t.Fatalf("expected row locks in ascending id order, got %v", tabulars.lockOrder)
		}
	}
}

func firstTabularID(repo *fakeTabularRepo) (id ids.TabularID) {
	for k := range repo.byID {
		return k
	}
	return id
}

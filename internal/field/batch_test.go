package field

import (
	"context"
	"encoding/json"
	"testing"

	"fieldCV/internal/database"
	"fieldCV/internal/errcode"
)

func TestParentRefUnmarshal(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantID  *uint
		wantIdx *int
		wantErr bool
	}{
		{name: "numeric id", input: `42`, wantID: uintPtr(42)},
		{name: "back reference", input: `"#3"`, wantIdx: intPtr(3)},
		{name: "null", input: `null`},
		{name: "plain string", input: `"abc"`, wantErr: true},
		{name: "negative index", input: `"#-1"`, wantErr: true},
		{name: "non numeric index", input: `"#x"`, wantErr: true},
		{name: "float id", input: `1.5`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ref ParentRef
			err := json.Unmarshal([]byte(tc.input), &ref)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("want error for %s", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal %s: %v", tc.input, err)
			}
			switch {
			case tc.wantID != nil:
				if ref.ID == nil || *ref.ID != *tc.wantID {
					t.Fatalf("want id %d, got %+v", *tc.wantID, ref)
				}
			case tc.wantIdx != nil:
				if ref.Index == nil || *ref.Index != *tc.wantIdx {
					t.Fatalf("want index %d, got %+v", *tc.wantIdx, ref)
				}
			default:
				if !ref.IsZero() {
					t.Fatalf("want zero ref, got %+v", ref)
				}
			}
		})
	}
}

func TestBatchCreateResolvesBackReferences(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")

	created, err := svc.BatchCreate(ctx, alice, []BatchCreateItem{
		{Name: "experience", Type: database.FieldTypeObject},
		{Name: "company", Type: database.FieldTypeText, Belong: ParentRef{Index: intPtr(0)}, Pos: intPtr(1)},
		{Name: "period", Type: database.FieldTypeDate, Belong: ParentRef{Index: intPtr(0)}, Pos: intPtr(2)},
	})
	if err != nil {
		t.Fatalf("batch create: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("want 3 fields, got %d", len(created))
	}

	root := created[0]
	for _, child := range created[1:] {
		if child.BelongID == nil || *child.BelongID != root.ID {
			t.Fatalf("child %q should point to %d, got %v", child.Name, root.ID, child.BelongID)
		}
	}
}

func TestBatchCreateForwardReferenceRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")

	_, err := svc.BatchCreate(ctx, alice, []BatchCreateItem{
		{Name: "child", Type: database.FieldTypeText, Belong: ParentRef{Index: intPtr(1)}, Pos: intPtr(1)},
		{Name: "parent", Type: database.FieldTypeObject},
	})
	if errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("forward reference: want BadRequest, got %v", err)
	}

	// 指向自身同样非法。
	_, err = svc.BatchCreate(ctx, alice, []BatchCreateItem{
		{Name: "loop", Type: database.FieldTypeObject, Belong: ParentRef{Index: intPtr(0)}},
	})
	if errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("self reference: want BadRequest, got %v", err)
	}

	if got := fieldCount(t, db); got != 0 {
		t.Fatalf("rejected batches must not persist anything, got %d fields", got)
	}
}

func TestBatchCreateDuplicateWithinBatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")

	_, err := svc.BatchCreate(ctx, alice, []BatchCreateItem{
		{Name: "parent", Type: database.FieldTypeObject},
		{Name: "dup", Type: database.FieldTypeText, Belong: ParentRef{Index: intPtr(0)}, Pos: intPtr(1)},
		{Name: "dup", Type: database.FieldTypeText, Belong: ParentRef{Index: intPtr(0)}, Pos: intPtr(1)},
	})
	if errcode.CodeOf(err) != errcode.Conflict {
		t.Fatalf("duplicate in batch: want Conflict, got %v", err)
	}
}

func TestBatchCreateExistingNameConflict(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	mustCreateField(t, svc, alice, CreateFieldInput{Name: "taken", Type: database.FieldTypeText})

	_, err := svc.BatchCreate(ctx, alice, []BatchCreateItem{
		{Name: "taken", Type: database.FieldTypeText},
	})
	if errcode.CodeOf(err) != errcode.Conflict {
		t.Fatalf("existing name: want Conflict, got %v", err)
	}
}

func TestBatchCreateUnknownGroup(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")

	_, err := svc.BatchCreate(ctx, alice, []BatchCreateItem{
		{Name: "a", Type: database.FieldTypeText, GroupID: uintPtr(9999)},
	})
	if errcode.CodeOf(err) != errcode.NotFound {
		t.Fatalf("unknown group: want NotFound, got %v", err)
	}
}

func TestBatchCreateDisplacesSlots(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	parent := mustCreateField(t, svc, alice, CreateFieldInput{Name: "parent", Type: database.FieldTypeObject})
	old := mustCreateField(t, svc, alice, CreateFieldInput{
		Name: "old", Type: database.FieldTypeText, BelongID: &parent.ID, Pos: intPtr(1),
	})

	created, err := svc.BatchCreate(ctx, alice, []BatchCreateItem{
		{Name: "new", Type: database.FieldTypeText, Belong: ParentRef{ID: &parent.ID}, Pos: intPtr(1)},
	})
	if err != nil {
		t.Fatalf("batch create: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("want 1 field, got %d", len(created))
	}

	var gone database.Field
	if err := db.First(&gone, old.ID).Error; err == nil {
		t.Fatal("occupant should be displaced")
	}
	positions := positionsByName(t, db, parent.ID)
	if len(positions) != 1 || positions["new"] != 1 {
		t.Fatalf("want only new at pos 1, got %v", positions)
	}
}

func TestBatchUpdateSwapsPositions(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	parent := mustCreateField(t, svc, alice, CreateFieldInput{Name: "parent", Type: database.FieldTypeObject})
	a := mustCreateField(t, svc, alice, CreateFieldInput{
		Name: "a", Type: database.FieldTypeText, BelongID: &parent.ID, Pos: intPtr(1),
	})
	b := mustCreateField(t, svc, alice, CreateFieldInput{
		Name: "b", Type: database.FieldTypeText, BelongID: &parent.ID, Pos: intPtr(2),
	})
	mustCreateField(t, svc, alice, CreateFieldInput{
		Name: "c", Type: database.FieldTypeText, BelongID: &parent.ID, Pos: intPtr(3),
	})

	updated, err := svc.BatchUpdate(ctx, alice, []BatchUpdateItem{
		{ID: a.ID, Data: UpdateFieldInput{Pos: intPtr(2)}},
		{ID: b.ID, Data: UpdateFieldInput{Pos: intPtr(1)}},
	})
	if err != nil {
		t.Fatalf("batch update: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("want 2 results, got %d", len(updated))
	}

	want := map[string]int{"a": 2, "b": 1, "c": 3}
	if got := positionsByName(t, db, parent.ID); !mapsEqual(got, want) {
		t.Fatalf("swap should land exactly: want %v, got %v", want, got)
	}
}

func TestBatchUpdateValueAndPos(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	parent := mustCreateField(t, svc, alice, CreateFieldInput{Name: "parent", Type: database.FieldTypeObject})
	a := mustCreateField(t, svc, alice, CreateFieldInput{
		Name: "a", Type: database.FieldTypeText, BelongID: &parent.ID, Pos: intPtr(1), Value: strPtr("old"),
	})
	mustCreateField(t, svc, alice, CreateFieldInput{
		Name: "b", Type: database.FieldTypeText, BelongID: &parent.ID, Pos: intPtr(2),
	})

	updated, err := svc.BatchUpdate(ctx, alice, []BatchUpdateItem{
		{ID: a.ID, Data: UpdateFieldInput{Value: strPtr("new"), Pos: intPtr(2)}},
	})
	if err != nil {
		t.Fatalf("batch update: %v", err)
	}
	if updated[0].Value == nil || *updated[0].Value != "new" {
		t.Fatalf("want value new, got %v", updated[0].Value)
	}

	want := map[string]int{"a": 2, "b": 1}
	if got := positionsByName(t, db, parent.ID); !mapsEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestBatchUpdateMissingTargetFailsWhole(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	a := mustCreateField(t, svc, alice, CreateFieldInput{
		Name: "a", Type: database.FieldTypeText, Value: strPtr("before"),
	})
	foreign := mustCreateField(t, svc, bob, CreateFieldInput{Name: "x", Type: database.FieldTypeText})

	_, err := svc.BatchUpdate(ctx, alice, []BatchUpdateItem{
		{ID: a.ID, Data: UpdateFieldInput{Value: strPtr("after")}},
		{ID: foreign.ID, Data: UpdateFieldInput{Value: strPtr("after")}},
	})
	if errcode.CodeOf(err) != errcode.NotFound {
		t.Fatalf("foreign target: want NotFound, got %v", err)
	}

	var reloaded database.Field
	if err := db.First(&reloaded, a.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Value == nil || *reloaded.Value != "before" {
		t.Fatalf("no patch may apply when any target is missing, got %v", reloaded.Value)
	}
}

func TestBatchUpdateEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)

	alice := createTestUser(t, db, "alice")

	if _, err := svc.BatchUpdate(context.Background(), alice, nil); errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("empty updates: want BadRequest, got %v", err)
	}
}

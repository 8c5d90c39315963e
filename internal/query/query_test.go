package query

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fieldCV/internal/database"
	"fieldCV/internal/errcode"
)

var allowed = []string{"name", "create_time", "update_time"}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.FieldGroup{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedGroups(t *testing.T, db *gorm.DB, names ...string) uint {
	t.Helper()
	user := database.User{Username: "alice", PasswordHash: "irrelevant"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	for _, name := range names {
		if err := db.Create(&database.FieldGroup{Name: name, UserID: user.ID}).Error; err != nil {
			t.Fatalf("create group %q: %v", name, err)
		}
	}
	return user.ID
}

func TestRunPagination(t *testing.T) {
	db := newTestDB(t)
	seedGroups(t, db, "a", "b", "c", "d", "e")

	result, err := Run[database.FieldGroup](db, Options{Page: 2, Limit: 2, Sort: []Sort{{Key: "name", Order: "asc"}}}, allowed)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Total != 5 {
		t.Fatalf("want total 5, got %d", result.Total)
	}
	if result.TotalPages != 3 {
		t.Fatalf("want 3 pages, got %d", result.TotalPages)
	}
	if len(result.Data) != 2 || result.Data[0].Name != "c" || result.Data[1].Name != "d" {
		t.Fatalf("want page [c d], got %+v", result.Data)
	}
}

func TestRunDefaults(t *testing.T) {
	db := newTestDB(t)
	seedGroups(t, db, "a")

	result, err := Run[database.FieldGroup](db, Options{}, allowed)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Page != 1 || result.Limit != 10 {
		t.Fatalf("want defaults page=1 limit=10, got page=%d limit=%d", result.Page, result.Limit)
	}
}

func TestRunConditionKeyAllowlist(t *testing.T) {
	db := newTestDB(t)
	seedGroups(t, db, "a")

	_, err := Run[database.FieldGroup](db, Options{
		Condition: []Condition{{Key: "user_id; DROP TABLE users", Operate: OpEqual, Value: 1}},
	}, allowed)
	if errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("forbidden key: want BadRequest, got %v", err)
	}

	_, err = Run[database.FieldGroup](db, Options{
		Sort: []Sort{{Key: "password_hash", Order: "asc"}},
	}, allowed)
	if errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("forbidden sort key: want BadRequest, got %v", err)
	}
}

func TestRunOperators(t *testing.T) {
	db := newTestDB(t)
	seedGroups(t, db, "Profile", "Education", "Work")

	cases := []struct {
		name      string
		condition Condition
		want      []string
	}{
		{
			name:      "eq",
			condition: Condition{Key: "name", Operate: OpEqual, Value: "Work"},
			want:      []string{"Work"},
		},
		{
			name:      "ne",
			condition: Condition{Key: "name", Operate: OpNotEqual, Value: "Work"},
			want:      []string{"Education", "Profile"},
		},
		{
			name:      "ilike",
			condition: Condition{Key: "name", Operate: OpILike, Value: "%pro%"},
			want:      []string{"Profile"},
		},
		{
			name:      "in",
			condition: Condition{Key: "name", Operate: OpIn, Value: []any{"Work", "Profile"}},
			want:      []string{"Profile", "Work"},
		},
		{
			name:      "nin",
			condition: Condition{Key: "name", Operate: OpNotIn, Value: []any{"Work", "Profile"}},
			want:      []string{"Education"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Run[database.FieldGroup](db, Options{
				Condition: []Condition{tc.condition},
				Sort:      []Sort{{Key: "name", Order: "asc"}},
			}, allowed)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			got := make([]string, 0, len(result.Data))
			for _, g := range result.Data {
				got = append(got, g.Name)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("want %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestRunBetweenValidation(t *testing.T) {
	db := newTestDB(t)
	seedGroups(t, db, "a")

	_, err := Run[database.FieldGroup](db, Options{
		Condition: []Condition{{Key: "name", Operate: OpBetween, Value: []any{"a"}}},
	}, allowed)
	if errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("between with one bound: want BadRequest, got %v", err)
	}

	_, err = Run[database.FieldGroup](db, Options{
		Condition: []Condition{{Key: "name", Operate: OpIn, Value: "not-an-array"}},
	}, allowed)
	if errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("in with scalar: want BadRequest, got %v", err)
	}

	_, err = Run[database.FieldGroup](db, Options{
		Condition: []Condition{{Key: "name", Operate: "regex", Value: ".*"}},
	}, allowed)
	if errcode.CodeOf(err) != errcode.BadRequest {
		t.Fatalf("unknown operator: want BadRequest, got %v", err)
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total int64
		limit int
		want  int
	}{
		{total: 0, limit: 10, want: 0},
		{total: 1, limit: 10, want: 1},
		{total: 10, limit: 10, want: 1},
		{total: 11, limit: 10, want: 2},
		{total: 5, limit: 0, want: 0},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.limit); got != tc.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tc.total, tc.limit, got, tc.want)
		}
	}
}

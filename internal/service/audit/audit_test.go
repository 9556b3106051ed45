package audit

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/config"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func TestListScoping(t *testing.T) {
	db := initTestDB(t)

	alice := uint(1)
	bob := uint(2)
	entity := uint(10)

	require.NoError(t, Record(db, &alice, "create_equipment", "equipment", &entity, ""))
	require.NoError(t, Record(db, &bob, "create_equipment", "equipment", &entity, ""))
	// public check-ins carry no actor and show up for everyone
	require.NoError(t, Record(db, nil, "check_in", "equipment", &entity, ""))

	rows, total, err := List(db, alice, 0, 20)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, rows, 2)
	for _, row := range rows {
		if row.UserID != nil {
			require.Equal(t, alice, *row.UserID)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	db := initTestDB(t)
	user := uint(1)

	for _, action := range []string{"first", "second", "third"} {
		require.NoError(t, Record(db, &user, action, "equipment", nil, ""))
	}

	rows, _, err := List(db, user, 0, 20)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "third", rows[0].Action)
	require.Equal(t, "first", rows[2].Action)
}

func TestListPagination(t *testing.T) {
	db := initTestDB(t)
	user := uint(1)

	for i := 0; i < 5; i++ {
		require.NoError(t, Record(db, &user, "create_service", "service", nil, ""))
	}

	rows, total, err := List(db, user, 0, 2)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, rows, 2)

	rows, _, err = List(db, user, 4, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

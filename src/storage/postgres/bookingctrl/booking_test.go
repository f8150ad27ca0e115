package bookingctrl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/src/core/rag"
	"ragdesk/src/storage/postgres/bookingctrl"
	"ragdesk/src/storage/postgres/pgtest"
)

func TestRepository(t *testing.T) {
	repo, err := bookingctrl.NewRepository(pgtest.NewDB(t))
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate())
	ctx := context.Background()

	first := &rag.Booking{SessionID: "s1", Name: "Alice", Email: "alice@example.com", Date: "2024-05-01", Time: "10:00", Query: "book me"}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	require.NoError(t, repo.Create(ctx, &rag.Booking{SessionID: "s1", Name: "Bob", Email: "Unknown", Date: "TBD", Time: "TBD"}))
	require.NoError(t, repo.Create(ctx, &rag.Booking{SessionID: "s2", Name: "Carol", Email: "Unknown", Date: "TBD", Time: "TBD"}))

	got, err := repo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Name)
	assert.Equal(t, "2024-05-01", got[0].Date)
	assert.Equal(t, "Bob", got[1].Name)
}

package restaurants

import (
	"context"
	"testing"

	"github.com/angelmondragon/foodrun-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralRepository_RegisterAndLookup(t *testing.T) {
	repo := NewReferralRepository(dbtest.Open(t))
	ctx := context.Background()
	restaurantID := uuid.New()
	adminID := uuid.New()

	none, err := repo.ReferrerFor(ctx, restaurantID)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = repo.Register(ctx, restaurantID, adminID)
	require.NoError(t, err)

	got, err := repo.ReferrerFor(ctx, restaurantID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, adminID, *got)

	_, err = repo.Register(ctx, restaurantID, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	_, err = repo.Register(ctx, uuid.Nil, adminID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

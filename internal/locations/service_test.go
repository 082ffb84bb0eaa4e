package locations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestdesk/farmops-backend/pkg/db/dbtest"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
)

func TestLocationsLifecycle(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t), 0))
	require.NoError(t, err)
	ctx := context.Background()

	cold, err := svc.Create(ctx, CreateInput{Name: " Cold Room ", Type: enums.LocationColdStorage})
	require.NoError(t, err)
	assert.Equal(t, "Cold Room", cold.Name)

	_, err = svc.Create(ctx, CreateInput{Name: "Barn", Type: enums.LocationWarehouse})
	require.NoError(t, err)

	got, err := svc.Get(ctx, cold.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LocationColdStorage, got.Type)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Barn", all[0].Name)

	_, err = svc.Create(ctx, CreateInput{Name: "Barn", Type: enums.LocationField})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateValidation(t *testing.T) {
	svc, err := NewService(NewRepository(nil, 0))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Name: "", Type: enums.LocationField})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(context.Background(), CreateInput{Name: "Shed", Type: "garage"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(context.Background(), CreateInput{Name: "Shed", Type: enums.LocationField})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotConfigured))
}

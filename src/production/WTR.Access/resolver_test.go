package access

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	auth_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/auth"
	hardware_models "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Models/hardware"
	interfaces "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Repository/Interfaces"
)

type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) GetDevice(ctx context.Context, deviceID string) (*hardware_models.Device, error) {
	args := m.Called(ctx, deviceID)
	if d, ok := args.Get(0).(*hardware_models.Device); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeviceRepo) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var alice = auth_models.Principal{UserID: "alice", Role: "user"}

func TestResolve(t *testing.T) {
	device := &hardware_models.Device{DeviceID: "dev-1", Name: "Panel", OwnerID: "alice", IsActive: true}

	tests := []struct {
		name      string
		principal auth_models.Principal
		repoErr   error
		wantErr   error
	}{
		{name: "owner", principal: alice},
		{name: "admin", principal: auth_models.Principal{UserID: "root", Role: auth_models.RoleAdmin}},
		{name: "other user", principal: auth_models.Principal{UserID: "bob", Role: "user"}, wantErr: ErrForbidden},
		{name: "unknown device", principal: alice, repoErr: fmt.Errorf("%w: dev-1", interfaces.ErrDeviceNotFound), wantErr: ErrDeviceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockDeviceRepo{}
			if tt.repoErr != nil {
				repo.On("GetDevice", mock.Anything, "dev-1").Return(nil, tt.repoErr)
			} else {
				repo.On("GetDevice", mock.Anything, "dev-1").Return(device, nil)
			}
			r, err := NewResolver(repo, 0, 0)
			require.NoError(t, err)

			got, err := r.Resolve(context.Background(), "dev-1", tt.principal)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Panel", got.Name)
		})
	}
}

func TestResolveRegistryFailure(t *testing.T) {
	repo := &mockDeviceRepo{}
	repo.On("GetDevice", mock.Anything, "dev-1").Return(nil, errors.New("connection refused"))
	r, err := NewResolver(repo, 0, 0)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "dev-1", alice)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDeviceNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
}

func TestResolveCachesWithinTTL(t *testing.T) {
	repo := &mockDeviceRepo{}
	repo.On("GetDevice", mock.Anything, "dev-1").
		Return(&hardware_models.Device{DeviceID: "dev-1", OwnerID: "alice"}, nil)

	r, err := NewResolver(repo, 16, time.Minute)
	require.NoError(t, err)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "dev-1", alice)
		require.NoError(t, err)
	}
	repo.AssertNumberOfCalls(t, "GetDevice", 1)

	// ownership is still checked against the cached record
	_, err = r.Resolve(context.Background(), "dev-1", auth_models.Principal{UserID: "bob"})
	assert.True(t, errors.Is(err, ErrForbidden))

	now = now.Add(2 * time.Minute)
	_, err = r.Resolve(context.Background(), "dev-1", alice)
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetDevice", 2)
}

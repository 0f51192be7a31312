package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	access "github.com/tidewatch/go-access"
)

func TestActivitySinkFuncAdapter(t *testing.T) {
	var recorded access.ActivityEvent

	sink := access.ActivitySinkFunc(func(ctx context.Context, event access.ActivityEvent) error {
		recorded = event
		return nil
	})

	err := sink.Record(context.Background(), access.ActivityEvent{
		EventType: access.ActivityEventLogout,
	})
	require.NoError(t, err)
	assert.Equal(t, access.ActivityEventLogout, recorded.EventType)

	var nilSink access.ActivitySinkFunc
	assert.NoError(t, nilSink.Record(context.Background(), access.ActivityEvent{}))
}

func TestFailingSinkDoesNotBreakLogin(t *testing.T) {
	backend := &MockBackend{}

	id := uuid.New()
	identity := access.NewIdentity(id.String(), "ada@reef.example")

	backend.On("Login", mock.Anything, mock.Anything).Return(identity, nil).Once()
	backend.On("GetProfile", mock.Anything, id.String()).Return(adminProfile(id), nil).Once()

	failing := access.ActivitySinkFunc(func(context.Context, access.ActivityEvent) error {
		return access.ErrBackendUnavailable
	})

	manager := access.NewSessionManager(backend, access.WithActivitySink(failing))

	session, err := manager.Login(context.Background(), access.Credentials{
		Email:    "ada@reef.example",
		Password: "correct-horse",
	})
	require.NoError(t, err, "audit failures must never block auth operations")
	assert.True(t, session.IsAuthenticated())
}

func TestApprovalEventCarriesStatusTransition(t *testing.T) {
	backend := &MockBackend{}
	sink := &captureSink{}

	profile := pendingProfile(uuid.New())
	id := profile.ID.String()

	backend.On("PendingProfiles", mock.Anything).
		Return([]*access.Profile{profile}, nil).Once()
	backend.On("ApproveAccount", mock.Anything, id).Return(nil).Once()

	frozen := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	engine := access.NewApprovalEngine(backend,
		access.WithEngineActivitySink(sink),
		access.WithEngineClock(func() time.Time { return frozen }),
	)

	_, err := engine.ListPending(context.Background())
	require.NoError(t, err)
	require.NoError(t, engine.Approve(context.Background(), moderator, id))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, access.ActivityEventApprovalGranted, events[0].EventType)
	assert.Equal(t, access.AccountStatusPending, events[0].FromStatus)
	assert.Equal(t, access.AccountStatusApproved, events[0].ToStatus)
	assert.Equal(t, moderator, events[0].Actor)
	assert.Equal(t, id, events[0].UserID)
	assert.Equal(t, frozen, events[0].OccurredAt)
}

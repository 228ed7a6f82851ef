package notify

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/escalation"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

func TestSimpleDispatcherRecordsContacts(t *testing.T) {
	d := NewSimpleDispatcher(logging.NewWithWriter("error", io.Discard))
	ctx := context.Background()

	ok, err := d.ContactHotline(ctx, "us")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.ContactEmergencyServices(ctx, "CA", &escalation.Location{Latitude: 45.5, Longitude: -73.6})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.NotifyResponder(ctx, "resp-1", "sess-1", escalation.TierEmergency))

	contacts := d.Contacts()
	require.Len(t, contacts, 3)
	assert.Equal(t, "hotline", contacts[0].Kind)
	assert.Equal(t, "US", contacts[0].Region)
	assert.Equal(t, "emergency_services", contacts[1].Kind)
	assert.Equal(t, "CA", contacts[1].Region)
	assert.Equal(t, "resp-1", contacts[2].ResponderID)
	assert.Equal(t, escalation.TierEmergency, contacts[2].Tier)
}

func TestSimpleDispatcherHonorsCanceledContext(t *testing.T) {
	d := NewSimpleDispatcher(logging.NewWithWriter("error", io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := d.ContactHotline(ctx, "US")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.Contacts())
}

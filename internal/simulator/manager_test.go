package simulator

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withaibuild/site/internal/scheduler"
)

func newTestManager(t *testing.T, mcfg ManagerConfig) (*Manager, *scheduler.Manual) {
	t.Helper()
	clock := scheduler.NewManual(start)
	m, err := NewManager(DefaultConfig(), mcfg, clock, nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, clock
}

func TestManager_CreateAndGet(t *testing.T) {
	m, clock := newTestManager(t, ManagerConfig{Retention: time.Minute})

	run, err := m.Create(acmeForm())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, start, run.CreatedAt)

	got, err := m.Get(run.ID)
	require.NoError(t, err)
	assert.Same(t, run, got)

	clock.Advance(18 * time.Second)
	assert.Equal(t, PhaseDone, got.Snapshot().Phase)

	_, err = m.Get(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestManager_CreateInvalid(t *testing.T) {
	m, _ := newTestManager(t, ManagerConfig{})

	_, err := m.Create(Form{})
	var fe FieldErrors
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, m.Len())
}

func TestManager_Cancel(t *testing.T) {
	m, clock := newTestManager(t, ManagerConfig{Retention: time.Minute})

	run, err := m.Create(acmeForm())
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	require.NoError(t, m.Cancel(run.ID))

	frozen := run.Snapshot()
	clock.Advance(20 * time.Second)
	assert.Equal(t, frozen, run.Snapshot())

	assert.ErrorIs(t, m.Cancel(uuid.New()), ErrRunNotFound)
}

func TestManager_MaxRuns(t *testing.T) {
	m, clock := newTestManager(t, ManagerConfig{Retention: time.Hour, MaxRuns: 2})

	_, err := m.Create(acmeForm())
	require.NoError(t, err)
	_, err = m.Create(acmeForm())
	require.NoError(t, err)

	_, err = m.Create(acmeForm())
	assert.ErrorIs(t, err, ErrTooManyRuns)

	// Finished runs do not count against the cap
	clock.Advance(18 * time.Second)
	_, err = m.Create(acmeForm())
	assert.NoError(t, err)
}

func TestManager_Reap(t *testing.T) {
	m, clock := newTestManager(t, ManagerConfig{Retention: time.Minute})

	done, err := m.Create(acmeForm())
	require.NoError(t, err)
	clock.Advance(18 * time.Second)

	live, err := m.Create(acmeForm())
	require.NoError(t, err)
	clock.Advance(time.Second)

	assert.Equal(t, 0, m.Reap(), "retention has not elapsed")

	// The reaper runs every Retention/2 on the scheduler.
	live.Cancel()
	clock.Advance(90 * time.Second)

	_, err = m.Get(done.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = m.Get(live.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestManager_Close(t *testing.T) {
	m, clock := newTestManager(t, ManagerConfig{})

	run, err := m.Create(acmeForm())
	require.NoError(t, err)

	m.Close()
	m.Close()

	assert.True(t, run.Snapshot().Cancelled)
	assert.Equal(t, 0, clock.Pending(), "runs and reaper are stopped")

	_, err = m.Create(acmeForm())
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestNewManager_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 0
	_, err := NewManager(cfg, ManagerConfig{}, scheduler.NewManual(start), nil)
	assert.Error(t, err)
}

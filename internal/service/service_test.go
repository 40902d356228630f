package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/metrics"
	"zephyrm-backend/internal/repository"
	"zephyrm-backend/internal/repository/memory"
)

type recordingDeliverer struct {
	mu  sync.Mutex
	got map[int32][]string
}

func (d *recordingDeliverer) Deliver(ctx context.Context, userID int32, n *domain.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.got == nil {
		d.got = map[int32][]string{}
	}
	d.got[userID] = append(d.got[userID], n.Title)
	return nil
}

func (d *recordingDeliverer) titles(userID int32) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.got[userID]...)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject)
	return m.err
}

type recordingReminders struct {
	mu        sync.Mutex
	scheduled []int32
	cancelled []int32
}

func (r *recordingReminders) Schedule(ctx context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, e.ID)
	return nil
}

func (r *recordingReminders) Cancel(ctx context.Context, eventID int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, eventID)
	return nil
}

type fixture struct {
	store     *memory.Store
	assets    AssetService
	requests  RequestService
	notes     NotificationService
	events    EventService
	deliverer *recordingDeliverer
	mailer    *recordingMailer
	reminders *recordingReminders

	admin domain.User
	user  domain.User
	other domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:     memory.NewStore(nil),
		deliverer: &recordingDeliverer{},
		mailer:    &recordingMailer{},
		reminders: &recordingReminders{},
		admin:     domain.User{Email: "admin@example.com", Name: "Admin", Role: domain.UserRoleAdmin},
		user:      domain.User{Email: "u@example.com", Name: "U", Role: domain.UserRoleUser},
		other:     domain.User{Email: "v@example.com", Name: "V", Role: domain.UserRoleUser},
	}
	users := NewUserService(f.store.UserRepository)
	for _, u := range []*domain.User{&f.admin, &f.user, &f.other} {
		require.NoError(t, users.Create(ctx, u))
	}

	m := metrics.New()
	f.notes = NewNotificationService(f.store.NotificationRepository, f.store.UserRepository, f.deliverer)
	f.assets = NewAssetService(f.store.AssetRepository, f.store.UserRepository, m)
	f.requests = NewRequestService(f.store.RequestRepository, f.store.AssetRepository, f.store.UserRepository, f.assets, f.notes, f.mailer, m)
	f.events = NewEventService(f.store.EventRepository, f.store.UserRepository, f.store.AssetRepository, f.reminders)
	return f
}

func (f *fixture) newAsset(t *testing.T, title string) *domain.Asset {
	t.Helper()
	a := &domain.Asset{Title: title}
	require.NoError(t, f.assets.Create(context.Background(), a))
	return a
}

func (f *fixture) notesOf(t *testing.T, userID int32) []domain.Notification {
	t.Helper()
	notes, err := f.notes.List(context.Background(), userID)
	require.NoError(t, err)
	return notes
}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAsset(t, "A")

	r1, err := f.requests.CreateRequest(ctx, f.user.ID, a.ID, "R1", "needed for demo")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, r1.Status)

	r1, err = f.requests.Approve(ctx, r1.ID, a.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, r1.Status)

	got, err := f.assets.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStateOnLoan, got.State)
	require.NotNil(t, got.UserID)
	assert.Equal(t, f.user.ID, *got.UserID)

	notes := f.notesOf(t, f.user.ID)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Title, "Approved")
	assert.Equal(t, []string{"Request Approved"}, f.deliverer.titles(f.user.ID))

	r2, err := f.requests.CreateRequest(ctx, f.other.ID, a.ID, "R2", "also needed")
	require.NoError(t, err)
	r2, err = f.requests.Approve(ctx, r2.ID, a.ID, f.other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusDenied, r2.Status)
	assert.Equal(t, `asset "A" is not available (state ON_LOAN)`, r2.Motive)

	after, err := f.assets.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, got.State, after.State)
	assert.Equal(t, *got.UserID, *after.UserID)

	denied := f.notesOf(t, f.other.ID)
	require.Len(t, denied, 1)
	assert.Equal(t, "Request Denied", denied[0].Title)
	assert.Contains(t, denied[0].Description, "not available")

	// Both requests fanned out one row to the single admin.
	assert.Len(t, f.notesOf(t, f.admin.ID), 2)
	assert.Len(t, f.mailer.sent, 2)
}

func TestApprove_ConcurrentOnSameFreeAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAsset(t, "Scope")

	const n = 8
	reqIDs := make([]int32, n)
	for i := range reqIDs {
		uid := f.user.ID
		if i%2 == 1 {
			uid = f.other.ID
		}
		r, err := f.requests.CreateRequest(ctx, uid, a.ID, "need", "please")
		require.NoError(t, err)
		reqIDs[i] = r.ID
	}

	var approved, denied atomic.Int32
	var wg sync.WaitGroup
	for _, id := range reqIDs {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			r, err := f.requests.Approve(ctx, id, 0, 0)
			if !assert.NoError(t, err) {
				return
			}
			switch r.Status {
			case domain.RequestStatusApproved:
				approved.Add(1)
			case domain.RequestStatusDenied:
				denied.Add(1)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), approved.Load())
	assert.Equal(t, int32(n-1), denied.Load())

	got, err := f.assets.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStateOnLoan, got.State)
	assert.False(t, got.Inconsistent())
}

func TestApprove_NonFreeAssetLeavesAssetUnchanged(t *testing.T) {
	for _, state := range []domain.AssetState{domain.AssetStateBroken, domain.AssetStateUnderMaintenance} {
		t.Run(string(state), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			a := f.newAsset(t, "Drill")
			_, err := f.assets.SetState(ctx, a.ID, state)
			require.NoError(t, err)

			r, err := f.requests.CreateRequest(ctx, f.user.ID, a.ID, "fix shelf", "home")
			require.NoError(t, err)
			r, err = f.requests.Approve(ctx, r.ID, 0, 0)
			require.NoError(t, err)
			assert.Equal(t, domain.RequestStatusDenied, r.Status)

			got, err := f.assets.Get(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, state, got.State)
			assert.Nil(t, got.UserID)
			assert.Len(t, f.notesOf(t, f.user.ID), 1)
		})
	}
}

func TestRequest_TerminalStatusesAreFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAsset(t, "Van")

	r, err := f.requests.CreateRequest(ctx, f.user.ID, a.ID, "move", "boxes")
	require.NoError(t, err)
	_, err = f.requests.Deny(ctx, r.ID, "no driver")
	require.NoError(t, err)

	_, err = f.requests.Approve(ctx, r.ID, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.requests.Deny(ctx, r.ID, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.requests.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusDenied, stored.Status)
	assert.Equal(t, "no driver", stored.Motive)

	// Exactly one outcome notification despite the rejected attempts.
	notes := f.notesOf(t, f.user.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "Request Denied", notes[0].Title)
	assert.Contains(t, notes[0].Description, ": no driver")

	// Asset was never touched.
	got, err := f.assets.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStateFree, got.State)
}

func TestCreateRequest_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAsset(t, "Tent")

	t.Run("ValidationBeforeLookup", func(t *testing.T) {
		_, err := f.requests.CreateRequest(ctx, 999, 999, "", "x")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
	t.Run("UnknownUser", func(t *testing.T) {
		_, err := f.requests.CreateRequest(ctx, 999, a.ID, "camp", "weekend")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
	t.Run("UnknownAsset", func(t *testing.T) {
		_, err := f.requests.CreateRequest(ctx, f.user.ID, 999, "camp", "weekend")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
	t.Run("ApproveMissing", func(t *testing.T) {
		_, err := f.requests.Approve(ctx, 999, 0, 0)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRequest_DeleteOnlyByRequester(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAsset(t, "Bike")
	r, err := f.requests.CreateRequest(ctx, f.user.ID, a.ID, "commute", "rain")
	require.NoError(t, err)

	assert.ErrorIs(t, f.requests.Delete(ctx, r.ID, f.other.ID), domain.ErrForbidden)
	require.NoError(t, f.requests.Delete(ctx, r.ID, f.user.ID))
	assert.ErrorIs(t, f.requests.Delete(ctx, r.ID, f.user.ID), domain.ErrNotFound)
}

func TestOutcomeMailFailureDoesNotFailWorkflow(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")
	ctx := context.Background()
	a := f.newAsset(t, "Lens")
	r, err := f.requests.CreateRequest(ctx, f.user.ID, a.ID, "shoot", "portrait")
	require.NoError(t, err)

	r, err = f.requests.Approve(ctx, r.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, r.Status)
}

func TestMarkReturned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAsset(t, "Ladder")
	_, err := f.assets.Assign(ctx, a.ID, f.user.ID)
	require.NoError(t, err)

	_, err = f.requests.MarkReturned(ctx, a.ID, f.other.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.requests.MarkReturned(ctx, a.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStateFree, got.State)
	assert.Nil(t, got.UserID)

	admin := f.notesOf(t, f.admin.ID)
	require.Len(t, admin, 1)
	assert.Equal(t, "Asset Returned", admin[0].Title)
}

// relendingAssets re-lends the asset to another user just before the first
// read, as an admin acting between the holder's click and the write would.
type relendingAssets struct {
	repository.AssetRepository
	once   sync.Once
	relend func()
}

func (r *relendingAssets) GetByID(ctx context.Context, id int32) (*domain.Asset, error) {
	r.once.Do(r.relend)
	return r.AssetRepository.GetByID(ctx, id)
}

func TestMarkReturned_ChecksHolderAtReleaseTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAsset(t, "Tripod")
	_, err := f.assets.Assign(ctx, a.ID, f.user.ID)
	require.NoError(t, err)

	hooked := &relendingAssets{AssetRepository: f.store.AssetRepository}
	hooked.relend = func() {
		cur, err := f.store.AssetRepository.GetByID(ctx, a.ID)
		require.NoError(t, err)
		cur.State, cur.UserID = domain.AssetStateFree, nil
		require.NoError(t, f.store.AssetRepository.UpdateIfState(ctx, cur, domain.AssetStateOnLoan))
		cur.State, cur.UserID = domain.AssetStateOnLoan, &f.other.ID
		require.NoError(t, f.store.AssetRepository.UpdateIfState(ctx, cur, domain.AssetStateFree))
	}
	assets := NewAssetService(hooked, f.store.UserRepository, nil)
	requests := NewRequestService(f.store.RequestRepository, hooked, f.store.UserRepository, assets, f.notes, f.mailer, nil)

	_, err = requests.MarkReturned(ctx, a.ID, f.user.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.store.AssetRepository.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsHeldBy(f.other.ID))
	assert.Empty(t, f.notesOf(t, f.admin.ID))
}

func TestAssetStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAsset(t, "Printer")

	_, err := f.assets.Assign(ctx, a.ID, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.assets.Assign(ctx, a.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStateOnLoan, got.State)

	// Same holder again is a no-op; another user is a conflict.
	_, err = f.assets.Assign(ctx, a.ID, f.user.ID)
	assert.NoError(t, err)
	_, err = f.assets.Assign(ctx, a.ID, f.other.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.assets.AssignFromFree(ctx, a.ID, f.user.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.assets.SetState(ctx, a.ID, domain.AssetStateOnLoan)
	assert.NoError(t, err)

	got, err = f.assets.SetState(ctx, a.ID, domain.AssetStateUnderMaintenance)
	require.NoError(t, err)
	assert.Nil(t, got.UserID)

	_, err = f.assets.Release(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.assets.SetState(ctx, a.ID, domain.AssetStateFree)
	require.NoError(t, err)
	got, err = f.assets.Release(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStateFree, got.State)

	_, err = f.assets.SetState(ctx, a.ID, domain.AssetStateOnLoan)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAssetUpdate_StatePairGoesThroughTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.newAsset(t, "Tablet")
	uid := f.user.ID

	t.Run("Desynchronized", func(t *testing.T) {
		_, err := f.assets.Update(ctx, &domain.Asset{ID: a.ID, Title: "Tablet", State: domain.AssetStateFree, UserID: &uid})
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, err = f.assets.Update(ctx, &domain.Asset{ID: a.ID, Title: "Tablet", State: domain.AssetStateOnLoan})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("AssignViaEdit", func(t *testing.T) {
		got, err := f.assets.Update(ctx, &domain.Asset{ID: a.ID, Title: "Tablet 2", Location: "B2", State: domain.AssetStateOnLoan, UserID: &uid})
		require.NoError(t, err)
		assert.Equal(t, "Tablet 2", got.Title)
		assert.Equal(t, domain.AssetStateOnLoan, got.State)
		assert.Equal(t, uid, *got.UserID)
	})

	t.Run("OtherHolderConflicts", func(t *testing.T) {
		oid := f.other.ID
		_, err := f.assets.Update(ctx, &domain.Asset{ID: a.ID, Title: "Tablet", State: domain.AssetStateOnLoan, UserID: &oid})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("DescriptiveOnlyKeepsState", func(t *testing.T) {
		got, err := f.assets.Update(ctx, &domain.Asset{ID: a.ID, Title: "Tablet 3"})
		require.NoError(t, err)
		assert.Equal(t, domain.AssetStateOnLoan, got.State)
		assert.Equal(t, uid, *got.UserID)
	})
}

func TestNotification_MarkReadIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &domain.Notification{UserID: f.user.ID, Title: "Hi", Type: domain.NotificationTypeEventReminder}
	require.NoError(t, f.notes.Notify(ctx, n))

	for i := 0; i < 2; i++ {
		require.NoError(t, f.notes.MarkRead(ctx, n.ID, f.user.ID))
		notes := f.notesOf(t, f.user.ID)
		require.Len(t, notes, 1)
		assert.True(t, notes[0].Read)
	}

	assert.ErrorIs(t, f.notes.MarkRead(ctx, n.ID, f.other.ID), domain.ErrForbidden)
	assert.ErrorIs(t, f.notes.Delete(ctx, n.ID, f.other.ID), domain.ErrForbidden)
	require.NoError(t, f.notes.Delete(ctx, n.ID, f.user.ID))
	assert.Empty(t, f.notesOf(t, f.user.ID))
}

func TestNotification_NotifyAdminsFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := domain.User{Email: "boss@example.com", Name: "Boss", Role: domain.UserRoleAdmin}
	require.NoError(t, f.store.UserRepository.Create(ctx, &second))

	sent, err := f.notes.NotifyAdmins(ctx, domain.Notification{Title: "New Request", Type: domain.NotificationTypeNewRequest})
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.NotEqual(t, sent[0].ID, sent[1].ID)

	for _, id := range []int32{f.admin.ID, second.ID} {
		assert.Len(t, f.notesOf(t, id), 1)
		assert.Equal(t, []string{"New Request"}, f.deliverer.titles(id))
	}

	n, err := f.notes.MarkAllRead(ctx, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEvents_DriveReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Now().Add(2 * time.Hour)
	e := &domain.Event{Title: "Demo", Start: start, End: start.Add(time.Hour), UserID: f.user.ID}

	require.NoError(t, f.events.Create(ctx, e))
	assert.Equal(t, []int32{e.ID}, f.reminders.scheduled)

	edit := &domain.Event{ID: e.ID, Title: "Demo v2", Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)}
	assert.ErrorIs(t, f.events.Update(ctx, &f.other, edit), domain.ErrForbidden)
	require.NoError(t, f.events.Update(ctx, &f.admin, edit))
	assert.Equal(t, f.user.ID, edit.UserID)
	assert.Equal(t, []int32{e.ID, e.ID}, f.reminders.scheduled)

	assert.ErrorIs(t, f.events.Delete(ctx, &f.other, e.ID), domain.ErrForbidden)
	require.NoError(t, f.events.Delete(ctx, &f.user, e.ID))
	assert.Equal(t, []int32{e.ID}, f.reminders.cancelled)

	_, err := f.events.Get(ctx, e.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvents_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Now().Add(2 * time.Hour)
	missing := int32(999)

	err := f.events.Create(ctx, &domain.Event{Title: "x", Start: start, End: start, UserID: f.user.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)
	err = f.events.Create(ctx, &domain.Event{Title: "x", Start: start, End: start.Add(time.Hour), UserID: f.user.ID, AssetID: &missing})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.reminders.scheduled)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(7)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, k.size())

	// Different keys do not block each other.
	u1 := k.Lock(1)
	u2 := k.Lock(2)
	assert.Equal(t, 2, k.size())
	u1()
	u2()
	assert.Equal(t, 0, k.size())
}

func TestUserService_Create(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.store.UserRepository)
	ctx := context.Background()

	assert.ErrorIs(t, users.Create(ctx, &domain.User{Name: "x", Email: "not-an-email"}), domain.ErrValidation)
	assert.ErrorIs(t, users.Create(ctx, &domain.User{Email: "x@example.com"}), domain.ErrValidation)

	admins, err := users.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, f.admin.ID, admins[0].ID)
}

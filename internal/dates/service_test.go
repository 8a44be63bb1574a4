package dates

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ourdates/internal/auth"
	"ourdates/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&Entry{}, &jobs.Job{}))
	return db
}

type recorder struct {
	mu      sync.Mutex
	couples []string
	changes []Change
}

func (r *recorder) Publish(_ context.Context, coupleID string, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.couples = append(r.couples, coupleID)
	r.changes = append(r.changes, c)
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *recorder, *gorm.DB) {
	db := setupTestDB(t)
	rec := &recorder{}
	return &Service{DB: db, Notifier: rec, Now: func() time.Time { return now }}, rec, db
}

var sess = auth.Session{UserID: 1, CoupleID: "ABC123"}

func mustCreate(t *testing.T, svc *Service, s auth.Session, title string, at time.Time) Entry {
	t.Helper()
	e, err := svc.Create(context.Background(), s, CreateInput{Title: title, Category: CategoryChai, ScheduledAt: at})
	require.NoError(t, err)
	return e
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func TestCreate(t *testing.T) {
	svc, rec, _ := newService(t)

	e, err := svc.Create(context.Background(), sess, CreateInput{
		Title:       "  Sunset chai ",
		Category:    CategoryChai,
		ScheduledAt: now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "ABC123", e.CoupleID)
	assert.Equal(t, "Sunset chai", e.Title)
	assert.False(t, e.IsCompleted)
	assert.Equal(t, now, e.CreatedAt)

	require.Len(t, rec.changes, 1)
	assert.Equal(t, Insert, rec.changes[0].Kind)
	assert.Equal(t, "ABC123", rec.couples[0])
	assert.Equal(t, e.ID, rec.changes[0].Record.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, sess, CreateInput{Title: " ", Category: CategoryHome, ScheduledAt: now})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, sess, CreateInput{Title: "x", Category: "Cinema", ScheduledAt: now})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, sess, CreateInput{Title: "x", Category: CategoryHome})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, auth.Session{UserID: 1}, CreateInput{Title: "x", Category: CategoryHome, ScheduledAt: now})
	assert.ErrorIs(t, err, ErrNoCouple)

	assert.Empty(t, rec.changes)
}

func TestList_Views(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	mustCreate(t, svc, sess, "past-open", now.Add(-48*time.Hour))
	done := mustCreate(t, svc, sess, "past-done", now.Add(-72*time.Hour))
	mustCreate(t, svc, sess, "soon", now.Add(24*time.Hour))
	mustCreate(t, svc, sess, "later", now.Add(72*time.Hour))
	done2 := mustCreate(t, svc, sess, "recent-done", now.Add(-24*time.Hour))
	mustCreate(t, svc, auth.Session{UserID: 2, CoupleID: "OTHER1"}, "not-ours", now.Add(time.Hour))

	_, err := svc.ToggleComplete(ctx, sess, done.ID, true)
	require.NoError(t, err)
	_, err = svc.ToggleComplete(ctx, sess, done2.ID, true)
	require.NoError(t, err)

	all, err := svc.List(ctx, sess, ListQuery{View: ViewAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"past-done", "past-open", "recent-done", "soon", "later"}, ids(all))

	up, err := svc.List(ctx, sess, ListQuery{View: ViewUpcoming})
	require.NoError(t, err)
	assert.Equal(t, []string{"soon", "later"}, ids(up))

	completed, err := svc.List(ctx, sess, ListQuery{View: ViewCompleted})
	require.NoError(t, err)
	assert.Equal(t, []string{"recent-done", "past-done"}, ids(completed))

	none, err := svc.List(ctx, auth.Session{UserID: 9}, ListQuery{View: ViewAll})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestList_MonthAndMonths(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	may := mustCreate(t, svc, sess, "may", time.Date(2025, 5, 10, 19, 0, 0, 0, time.UTC))
	april := mustCreate(t, svc, sess, "april", time.Date(2025, 4, 2, 19, 0, 0, 0, time.UTC))
	mustCreate(t, svc, sess, "open", time.Date(2025, 3, 2, 19, 0, 0, 0, time.UTC))

	for _, id := range []string{may.ID, april.ID} {
		_, err := svc.ToggleComplete(ctx, sess, id, true)
		require.NoError(t, err)
	}

	months, err := svc.Months(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-05", "2025-04"}, months)

	inMay, err := svc.List(ctx, sess, ListQuery{View: ViewCompleted, Month: "2025-05"})
	require.NoError(t, err)
	assert.Equal(t, []string{"may"}, ids(inMay))

	_, err = svc.List(ctx, sess, ListQuery{View: ViewCompleted, Month: "May"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdate_Partial(t *testing.T) {
	svc, rec, _ := newService(t)
	ctx := context.Background()
	e := mustCreate(t, svc, sess, "Walk", now.Add(time.Hour))

	title := "Evening walk"
	cat := CategoryWalk
	got, err := svc.Update(ctx, sess, e.ID, UpdateInput{Title: &title, Category: &cat})
	require.NoError(t, err)

	assert.Equal(t, "Evening walk", got.Title)
	assert.Equal(t, CategoryWalk, got.Category)
	assert.True(t, e.ScheduledAt.Equal(got.ScheduledAt))

	require.Len(t, rec.changes, 2)
	assert.Equal(t, Update, rec.changes[1].Kind)
	assert.Equal(t, "Evening walk", rec.changes[1].Record.Title)
}

func TestUpdate_NotFoundAcrossCouples(t *testing.T) {
	svc, _, _ := newService(t)
	e := mustCreate(t, svc, sess, "ours", now)

	done := true
	_, err := svc.Update(context.Background(), auth.Session{UserID: 2, CoupleID: "OTHER1"}, e.ID, UpdateInput{IsCompleted: &done})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteWithPhoto_ThenReplacePhoto(t *testing.T) {
	svc, _, db := newService(t)
	ctx := context.Background()
	e := mustCreate(t, svc, sess, "Dinner", now.Add(-time.Hour))

	got, err := svc.CompleteWithPhoto(ctx, sess, e.ID, "http://x/date-photos/ABC123/a.jpg", " lovely ")
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	require.NotNil(t, got.PhotoURL)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "lovely", *got.Notes)

	var n int64
	require.NoError(t, db.Model(&jobs.Job{}).Count(&n).Error)
	assert.Zero(t, n)

	// new photo, notes untouched
	got, err = svc.CompleteWithPhoto(ctx, sess, e.ID, "http://x/date-photos/ABC123/b.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, "lovely", *got.Notes)

	var queued []jobs.Job
	require.NoError(t, db.Find(&queued).Error)
	require.Len(t, queued, 1)
	assert.Equal(t, jobs.TypePhotoDelete, queued[0].Type)
	assert.JSONEq(t, `{"photo_url":"http://x/date-photos/ABC123/a.jpg"}`, string(queued[0].Payload))
}

func TestUpdate_RejectsForeignPhoto(t *testing.T) {
	svc, rec, db := newService(t)
	ctx := context.Background()
	e := mustCreate(t, svc, sess, "Dinner", now.Add(-time.Hour))
	published := len(rec.changes)

	victim := "http://x/date-photos/VICTIM/1.png"
	_, err := svc.CompleteWithPhoto(ctx, sess, e.ID, victim, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Update(ctx, sess, e.ID, UpdateInput{PhotoURL: &victim})
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err := svc.Get(ctx, sess, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PhotoURL)
	assert.False(t, got.IsCompleted)
	assert.Len(t, rec.changes, published)

	// clearing afterwards has nothing of the victim's to queue
	empty := ""
	_, err = svc.Update(ctx, sess, e.ID, UpdateInput{PhotoURL: &empty})
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(&jobs.Job{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdate_PhotoKeyIsInjectable(t *testing.T) {
	svc, _, _ := newService(t)
	svc.PhotoKey = func(u string) (string, error) {
		return strings.TrimPrefix(u, "s3://bucket/"), nil
	}
	ctx := context.Background()
	e := mustCreate(t, svc, sess, "Walk", now)

	got, err := svc.CompleteWithPhoto(ctx, sess, e.ID, "s3://bucket/ABC123/a.jpg", "")
	require.NoError(t, err)
	require.NotNil(t, got.PhotoURL)

	_, err = svc.CompleteWithPhoto(ctx, sess, e.ID, "s3://bucket/OTHER1/a.jpg", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDelete(t *testing.T) {
	svc, rec, db := newService(t)
	ctx := context.Background()
	e := mustCreate(t, svc, sess, "Surprise", now)
	_, err := svc.CompleteWithPhoto(ctx, sess, e.ID, "http://x/date-photos/ABC123/a.jpg", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sess, e.ID))
	assert.ErrorIs(t, svc.Delete(ctx, sess, e.ID), ErrNotFound)

	_, err = svc.Get(ctx, sess, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	last := rec.changes[len(rec.changes)-1]
	assert.Equal(t, Delete, last.Kind)
	assert.Equal(t, e.ID, last.Record.ID)

	var n int64
	require.NoError(t, db.Model(&jobs.Job{}).Where("type = ?", jobs.TypePhotoDelete).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

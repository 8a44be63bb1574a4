package couple

import (
	"context"
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

	require.NoError(t, db.AutoMigrate(&auth.User{}, &Couple{}, &jobs.Job{}))
	return db
}

func newUser(t *testing.T, db *gorm.DB, email string) auth.User {
	t.Helper()
	u := auth.User{Email: email, PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func fixedCodes(codes ...string) func() string {
	i := 0
	return func() string {
		c := codes[i%len(codes)]
		i++
		return c
	}
}

var anniversary = time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC)

func TestCreateJoinInfo(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{
		DB:      db,
		NewCode: fixedCodes("ABC123"),
		Now:     func() time.Time { return anniversary.Add(100*24*time.Hour + time.Hour) },
	}
	ctx := context.Background()

	alice := newUser(t, db, "alice@example.com")
	bob := newUser(t, db, "bob@example.com")

	code, err := svc.Create(ctx, alice.ID, CreateInput{DisplayName: " Alice ", AnniversaryDate: anniversary})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)

	require.NoError(t, svc.Join(ctx, bob.ID, "abc123", "Bob"))

	info, err := svc.Info(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", info.CoupleID)
	assert.Equal(t, "Bob", info.DisplayName)
	assert.Equal(t, "Alice", info.Partner1Name)
	require.NotNil(t, info.Partner2Name)
	assert.Equal(t, "Bob", *info.Partner2Name)
	assert.Equal(t, 100, info.DaysTogether)

	sess, err := svc.Session(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.Session{UserID: alice.ID, CoupleID: "ABC123"}, sess)
}

func TestCreate_RetriesOnCollision(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db, NewCode: fixedCodes("AAAAAA", "AAAAAA", "BBBBBB")}
	ctx := context.Background()

	u1 := newUser(t, db, "1@example.com")
	u2 := newUser(t, db, "2@example.com")

	c1, err := svc.Create(ctx, u1.ID, CreateInput{DisplayName: "One", AnniversaryDate: anniversary})
	require.NoError(t, err)
	c2, err := svc.Create(ctx, u2.ID, CreateInput{DisplayName: "Two", AnniversaryDate: anniversary})
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", c1)
	assert.Equal(t, "BBBBBB", c2)
}

func TestCreate_AlreadyPaired(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db, NewCode: fixedCodes("AAAAAA", "BBBBBB")}
	ctx := context.Background()
	u := newUser(t, db, "1@example.com")

	_, err := svc.Create(ctx, u.ID, CreateInput{DisplayName: "One", AnniversaryDate: anniversary})
	require.NoError(t, err)

	_, err = svc.Create(ctx, u.ID, CreateInput{DisplayName: "One", AnniversaryDate: anniversary})
	assert.ErrorIs(t, err, ErrAlreadyPaired)
}

func TestJoin_Errors(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db, NewCode: fixedCodes("ABC123")}
	ctx := context.Background()
	u := newUser(t, db, "1@example.com")

	assert.ErrorIs(t, svc.Join(ctx, u.ID, "ZZZ999", "Me"), ErrInvalidCode)
	assert.ErrorIs(t, svc.Join(ctx, u.ID, "nope", "Me"), ErrInvalidCode)
	assert.ErrorIs(t, svc.Join(ctx, u.ID, "ABC123", "  "), ErrInvalidInput)
}

func TestInfo_NoCouple(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db}
	u := newUser(t, db, "1@example.com")

	_, err := svc.Info(context.Background(), u.ID)
	assert.ErrorIs(t, err, ErrNoCouple)

	sess, err := svc.Session(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, sess.HasCouple())
}

func TestSetPhoto_QueuesOldPhotoDelete(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db, NewCode: fixedCodes("ABC123")}
	ctx := context.Background()
	u := newUser(t, db, "1@example.com")

	_, err := svc.Create(ctx, u.ID, CreateInput{DisplayName: "One", AnniversaryDate: anniversary})
	require.NoError(t, err)
	sess := auth.Session{UserID: u.ID, CoupleID: "ABC123"}

	require.NoError(t, svc.SetPhoto(ctx, sess, "http://x/date-photos/ABC123/a.jpg"))
	require.NoError(t, svc.SetPhoto(ctx, sess, "http://x/date-photos/ABC123/b.jpg"))
	require.NoError(t, svc.ClearPhoto(ctx, sess))

	var c Couple
	require.NoError(t, db.First(&c, "id = ?", "ABC123").Error)
	assert.Nil(t, c.ProfilePhotoURL)

	var queued []jobs.Job
	require.NoError(t, db.Order("id").Find(&queued).Error)
	require.Len(t, queued, 2)
	assert.Contains(t, string(queued[0].Payload), "a.jpg")
	assert.Contains(t, string(queued[1].Payload), "b.jpg")
}

func TestSetPhoto_RejectsForeignPhoto(t *testing.T) {
	db := setupTestDB(t)
	svc := &Service{DB: db, NewCode: fixedCodes("ABC123")}
	ctx := context.Background()
	u := newUser(t, db, "1@example.com")

	_, err := svc.Create(ctx, u.ID, CreateInput{DisplayName: "One", AnniversaryDate: anniversary})
	require.NoError(t, err)
	sess := auth.Session{UserID: u.ID, CoupleID: "ABC123"}

	for _, foreign := range []string{
		"http://x/date-photos/VICTIM/1.png",
		"http://x/date-photos/VICTIM/1.png?x=/ABC123/",
		"not a url at all",
	} {
		assert.ErrorIs(t, svc.SetPhoto(ctx, sess, foreign), ErrInvalidInput, foreign)
	}

	// a rejected photo never becomes current, so nothing of the victim's is queued later
	require.NoError(t, svc.ClearPhoto(ctx, sess))
	var n int64
	require.NoError(t, db.Model(&jobs.Job{}).Count(&n).Error)
	assert.Zero(t, n)

	var c Couple
	require.NoError(t, db.First(&c, "id = ?", "ABC123").Error)
	assert.Nil(t, c.ProfilePhotoURL)
}

func TestCodes(t *testing.T) {
	gen, err := NewCodeGenerator()
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		assert.True(t, ValidCode(gen()))
	}
	assert.Equal(t, "AB12CD", NormalizeCode(" ab12cd "))
	assert.False(t, ValidCode("ab12cd"))
}

func TestDaysTogether(t *testing.T) {
	assert.Equal(t, 0, DaysTogether(anniversary, anniversary.Add(-time.Hour)))
	assert.Equal(t, 1, DaysTogether(anniversary, anniversary.Add(36*time.Hour)))
}

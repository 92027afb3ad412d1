package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"teamsched/internal/apperr"
	"teamsched/internal/audit"
	"teamsched/internal/dbtest"
	"teamsched/internal/kakao"
	"teamsched/internal/models"
	"teamsched/internal/notify"
	"teamsched/internal/token"
)

const testKey = "0123456789abcdef0123456789abcdef"

type fixture struct {
	db    *gorm.DB
	svc   *Service
	codec *token.Codec
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.Open(t)
	codec, err := token.NewCodec(testKey, 30*time.Minute, 14*24*time.Hour)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	f := &fixture{
		db:    db,
		codec: codec,
		now:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	codec.WithClock(clock)

	log := zerolog.Nop()
	prefs := notify.NewPreferenceService(db, log)
	f.svc = NewService(db, codec, nil, prefs, audit.NewRecorder(db, log), log).WithClock(clock)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) sessionCount(t *testing.T, userID uint) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&models.Session{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	return count
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "alice", "s3cret", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.PasswordHash == nil || *user.PasswordHash == "s3cret" {
		t.Error("password stored unhashed")
	}

	// Signup materializes the full default preference matrix.
	var prefCount int64
	f.db.Model(&models.NotificationPreference{}).Where("user_id = ?", user.ID).Count(&prefCount)
	if want := int64(len(models.ScheduleTypes()) * len(models.NotificationActionTypes())); prefCount != want {
		t.Errorf("preference rows = %d, want %d", prefCount, want)
	}

	if _, err := f.svc.Register(ctx, "alice", "other", "", ""); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate register err = %v, want CONFLICT", err)
	}

	result, err := f.svc.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("login returned empty token pair")
	}
	if got := f.sessionCount(t, user.ID); got != 1 {
		t.Errorf("session rows = %d, want 1", got)
	}

	// Wrong password and unknown user are indistinguishable.
	wrongErr := func(username, password string) string {
		_, err := f.svc.Login(ctx, username, password)
		if !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("Login(%s) err = %v, want UNAUTHORIZED", username, err)
		}
		return apperr.From(err).Message
	}
	if wrongErr("alice", "nope") != wrongErr("nobody", "nope") {
		t.Error("credential failures leak which part was wrong")
	}
}

func TestLoginRotatesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "bob", "pw123456", "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	first, err := f.svc.Login(ctx, "bob", "pw123456")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}

	f.advance(time.Minute)
	second, err := f.svc.Login(ctx, "bob", "pw123456")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}

	if first.RefreshToken == second.RefreshToken {
		t.Error("refresh token not rotated on re-login")
	}
	if got := f.sessionCount(t, user.ID); got != 1 {
		t.Errorf("session rows = %d, want exactly 1 after re-login", got)
	}
}

func TestReissueRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, "carol", "pw123456", "", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	login, err := f.svc.Login(ctx, "carol", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	f.advance(time.Minute)
	reissued, err := f.svc.Reissue(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Reissue: %v", err)
	}
	if reissued.RefreshToken == login.RefreshToken {
		t.Error("reissue did not rotate the refresh token")
	}

	// The consumed token is gone; replay fails closed.
	if _, err := f.svc.Reissue(ctx, login.RefreshToken); !errors.Is(err, apperr.ErrRefreshTokenNotFound) {
		t.Errorf("replay err = %v, want REFRESH_TOKEN_NOT_FOUND", err)
	}

	// The fresh token still works.
	f.advance(time.Minute)
	if _, err := f.svc.Reissue(ctx, reissued.RefreshToken); err != nil {
		t.Errorf("fresh token reissue: %v", err)
	}
}

func TestReissueExpiredDestroysRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, "dave", "pw123456", "", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	login, err := f.svc.Login(ctx, "dave", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	f.advance(15 * 24 * time.Hour)
	if _, err := f.svc.Reissue(ctx, login.RefreshToken); !errors.Is(err, apperr.ErrExpiredToken) {
		t.Fatalf("expired reissue err = %v, want EXPIRED_TOKEN", err)
	}

	// The expired row was destroyed, so the same token now reads not-found.
	if _, err := f.svc.Reissue(ctx, login.RefreshToken); !errors.Is(err, apperr.ErrRefreshTokenNotFound) {
		t.Errorf("second reissue err = %v, want REFRESH_TOKEN_NOT_FOUND", err)
	}
}

func TestReissueInvalidSignatureDestroysRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "erin", "pw123456", "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// A stored row whose token no longer verifies, as after a key rotation.
	stale := models.Session{
		UserID:       user.ID,
		RefreshToken: "not-a-valid-jwt",
		ExpiresAt:    f.now.Add(time.Hour),
	}
	if err := f.db.Create(&stale).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if _, err := f.svc.Reissue(ctx, stale.RefreshToken); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Fatalf("reissue err = %v, want INVALID_TOKEN", err)
	}
	if _, err := f.svc.Reissue(ctx, stale.RefreshToken); !errors.Is(err, apperr.ErrRefreshTokenNotFound) {
		t.Errorf("second reissue err = %v, want REFRESH_TOKEN_NOT_FOUND", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "frank", "pw123456", "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	login, err := f.svc.Login(ctx, "frank", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got := f.sessionCount(t, user.ID); got != 0 {
		t.Errorf("session rows = %d after logout, want 0", got)
	}
	// Replaying the logout is a silent success.
	if err := f.svc.Logout(ctx, login.RefreshToken); err != nil {
		t.Errorf("second Logout: %v", err)
	}
}

func TestCreateKakaoUserDuplicateIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile := kakao.Profile{KakaoID: 7002, Nickname: "lee"}
	if _, _, err := f.svc.ResolveOrCreate(ctx, profile, "token-1"); err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}

	// Two first logins racing past the existence lookup both reach the
	// insert; the loser hits the kakao_id unique index.
	_, err := f.svc.createKakaoUser(ctx, profile, "token-2")
	if !errors.Is(err, apperr.ErrDuplicateKakaoID) {
		t.Fatalf("createKakaoUser error = %v, want DUPLICATE_KAKAO_ID", err)
	}

	var count int64
	f.db.Model(&models.User{}).Where("kakao_id = ?", profile.KakaoID).Count(&count)
	if count != 1 {
		t.Errorf("user rows for kakao id = %d, want 1", count)
	}
}

func TestResolveOrCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile := kakao.Profile{KakaoID: 7001, Email: "kim@example.com", Nickname: "kim"}

	user, isNew, err := f.svc.ResolveOrCreate(ctx, profile, "token-1")
	if err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}
	if !isNew {
		t.Error("first resolution should report a new user")
	}
	if user.KakaoAccessToken == nil || *user.KakaoAccessToken != "token-1" {
		t.Error("access token not stored")
	}

	// New OAuth users get the default preference matrix too.
	var prefCount int64
	f.db.Model(&models.NotificationPreference{}).Where("user_id = ?", user.ID).Count(&prefCount)
	if prefCount == 0 {
		t.Error("kakao signup did not materialize preferences")
	}

	var before models.User
	if err := f.db.First(&before, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}

	// The same identity resolves to the same row; a refreshed provider
	// token is stored without bumping UpdatedAt.
	again, isNew, err := f.svc.ResolveOrCreate(ctx, profile, "token-2")
	if err != nil {
		t.Fatalf("second ResolveOrCreate: %v", err)
	}
	if isNew {
		t.Error("second resolution should not report a new user")
	}
	if again.ID != user.ID {
		t.Errorf("resolved user id = %d, want %d", again.ID, user.ID)
	}

	var after models.User
	if err := f.db.First(&after, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if after.KakaoAccessToken == nil || *after.KakaoAccessToken != "token-2" {
		t.Error("refreshed token not stored")
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("token refresh bumped UpdatedAt: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
}

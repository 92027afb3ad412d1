// Package auth implements session lifecycle (login, rotating refresh
// reissue, logout) and external identity resolution.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"teamsched/internal/apperr"
	"teamsched/internal/audit"
	"teamsched/internal/kakao"
	"teamsched/internal/models"
	"teamsched/internal/token"
)

// OAuthClient is the code-for-identity exchange the service depends on.
type OAuthClient interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchProfile(ctx context.Context, accessToken string) (kakao.Profile, error)
}

// PreferenceInitializer seeds default notification preferences for a new user.
type PreferenceInitializer interface {
	InitializeDefaults(ctx context.Context, userID uint) error
}

// Service coordinates credential checks, token issuance, and the single
// rotating refresh credential per user.
type Service struct {
	db    *gorm.DB
	codec *token.Codec
	oauth OAuthClient
	prefs PreferenceInitializer
	audit *audit.Recorder
	log   zerolog.Logger
	now   func() time.Time
}

// NewService constructs the auth service. oauth and prefs may be nil when
// the corresponding features are not configured.
func NewService(db *gorm.DB, codec *token.Codec, oauth OAuthClient, prefs PreferenceInitializer, rec *audit.Recorder, log zerolog.Logger) *Service {
	return &Service{
		db:    db,
		codec: codec,
		oauth: oauth,
		prefs: prefs,
		audit: rec,
		log:   log,
		now:   time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// LoginResult carries the issued token pair and the resolved user.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
	IsNewUser    bool
}

// Register creates a local credential user. Fails CONFLICT when the
// username is already taken.
func (s *Service) Register(ctx context.Context, username, password, name, email string) (models.User, error) {
	if username == "" || password == "" {
		return models.User{}, apperr.ErrBadRequest.WithMessage("username and password are required")
	}
	if name == "" {
		name = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	hashStr := string(hash)

	user := models.User{
		Username:     &username,
		PasswordHash: &hashStr,
		Name:         name,
		Email:        email,
		Role:         "USER",
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.ErrConflict.WithMessage("username is already taken")
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return models.User{}, err
	}

	if s.prefs != nil {
		if err := s.prefs.InitializeDefaults(ctx, user.ID); err != nil {
			s.log.Warn().Err(err).Uint("user_id", user.ID).Msg("default preference init failed")
		}
	}

	s.log.Info().Uint("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Login authenticates a local credential user and issues a token pair,
// rotating any stored refresh credential.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LoginResult{}, apperr.ErrUnauthorized.WithMessage("unknown username or wrong password")
		}
		return LoginResult{}, err
	}

	if user.PasswordHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, apperr.ErrUnauthorized.WithMessage("unknown username or wrong password")
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	s.audit.Record(ctx, &user.ID, "auth.login", "user", user.ID, nil)
	s.log.Info().Uint("user_id", user.ID).Msg("login succeeded")
	return result, nil
}

// Reissue rotates the refresh credential identified by refreshToken and
// returns a fresh token pair.
//
// Lookup failures, stored expiry, and signature validity are checked in
// that order; expiry and signature failures destroy the stored row so a
// replay of the same token yields REFRESH_TOKEN_NOT_FOUND.
func (s *Service) Reissue(ctx context.Context, refreshToken string) (LoginResult, error) {
	var session models.Session
	err := s.db.WithContext(ctx).Where("refresh_token = ?", refreshToken).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LoginResult{}, apperr.ErrRefreshTokenNotFound
		}
		return LoginResult{}, err
	}

	if session.Expired(s.now()) {
		if err := s.db.WithContext(ctx).Delete(&models.Session{}, session.ID).Error; err != nil {
			return LoginResult{}, err
		}
		return LoginResult{}, apperr.ErrExpiredToken
	}

	// A stored row can outlive a signing key rotation; validate the token
	// itself and destroy the row when it no longer verifies.
	if _, err := s.codec.Validate(refreshToken); err != nil {
		if delErr := s.db.WithContext(ctx).Delete(&models.Session{}, session.ID).Error; delErr != nil {
			return LoginResult{}, delErr
		}
		return LoginResult{}, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LoginResult{}, apperr.ErrUserNotFound
		}
		return LoginResult{}, err
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	s.log.Info().Uint("user_id", user.ID).Msg("token reissued")
	return result, nil
}

// Logout destroys the stored refresh credential. Idempotent: a token with
// no stored row is a no-op success.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	res := s.db.WithContext(ctx).Where("refresh_token = ?", refreshToken).Delete(&models.Session{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info().Msg("logout: refresh credential destroyed")
	}
	return nil
}

// KakaoLogin exchanges an authorization code for a Kakao identity, resolves
// or creates the local user, and issues a token pair.
func (s *Service) KakaoLogin(ctx context.Context, code string) (LoginResult, error) {
	if s.oauth == nil {
		return LoginResult{}, apperr.ErrKakaoAPI.WithMessage("kakao login is not configured")
	}

	accessToken, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return LoginResult{}, err
	}

	profile, err := s.oauth.FetchProfile(ctx, accessToken)
	if err != nil {
		return LoginResult{}, err
	}

	user, isNew, err := s.ResolveOrCreate(ctx, profile, accessToken)
	if err != nil {
		return LoginResult{}, err
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	result.IsNewUser = isNew

	s.audit.Record(ctx, &user.ID, "auth.kakao_login", "user", user.ID, map[string]any{"new_user": isNew})
	s.log.Info().Uint("user_id", user.ID).Bool("new_user", isNew).Msg("kakao login succeeded")
	return result, nil
}

// ResolveOrCreate maps an external Kakao identity to a local user, creating
// one on first sight. The isNewUser flag is decided by the lookup, before
// any row is written. For an existing user a changed access token is
// refreshed in place without touching UpdatedAt.
func (s *Service) ResolveOrCreate(ctx context.Context, profile kakao.Profile, accessToken string) (models.User, bool, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("kakao_id = ?", profile.KakaoID).First(&user).Error
	switch {
	case err == nil:
		if user.KakaoAccessToken == nil || *user.KakaoAccessToken != accessToken {
			// UpdateColumn skips gorm's UpdatedAt hook: token churn is not a
			// profile change and must not create audit noise.
			if err := s.db.WithContext(ctx).Model(&user).
				UpdateColumn("kakao_access_token", accessToken).Error; err != nil {
				return models.User{}, false, err
			}
			user.KakaoAccessToken = &accessToken
		}
		return user, false, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = s.createKakaoUser(ctx, profile, accessToken)
		if err != nil {
			return models.User{}, false, err
		}
		return user, true, nil

	default:
		return models.User{}, false, err
	}
}

// createKakaoUser inserts the local row for a first-time Kakao identity.
// Two logins racing past the lookup resolve at the kakao_id unique index;
// the loser surfaces DUPLICATE_KAKAO_ID.
func (s *Service) createKakaoUser(ctx context.Context, profile kakao.Profile, accessToken string) (models.User, error) {
	kakaoID := profile.KakaoID
	user := models.User{
		KakaoID:          &kakaoID,
		KakaoAccessToken: &accessToken,
		Email:            profile.Email,
		Name:             profile.Nickname,
		ProfileImageURL:  profile.ProfileImageURL,
		Role:             "USER",
	}
	if user.Name == "" {
		user.Name = "__PENDING__"
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, apperr.ErrDuplicateKakaoID.Wrap(err)
		}
		return models.User{}, err
	}
	if s.prefs != nil {
		if err := s.prefs.InitializeDefaults(ctx, user.ID); err != nil {
			s.log.Warn().Err(err).Uint("user_id", user.ID).Msg("default preference init failed")
		}
	}
	s.log.Info().Int64("kakao_id", profile.KakaoID).Uint("user_id", user.ID).Msg("new kakao user created")
	return user, nil
}

// issueSession mints a token pair and replaces every stored refresh row for
// the user with exactly one new row. Delete-all-then-insert-one serializes
// concurrent reissues down to a single surviving credential.
func (s *Service) issueSession(ctx context.Context, user models.User) (LoginResult, error) {
	accessToken, err := s.codec.Issue(user.ID, token.Access)
	if err != nil {
		return LoginResult{}, err
	}
	refreshToken, err := s.codec.Issue(user.ID, token.Refresh)
	if err != nil {
		return LoginResult{}, err
	}

	session := models.Session{
		UserID:       user.ID,
		RefreshToken: refreshToken,
		ExpiresAt:    s.now().Add(s.codec.RefreshTTL()),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

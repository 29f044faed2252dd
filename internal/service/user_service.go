package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"arenda/internal/config"
	"arenda/internal/database"
	"arenda/internal/domain"
	"arenda/internal/logging"
	"arenda/internal/metrics"
	"arenda/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMobileTaken     = errors.New("mobile already registered")
	ErrBadCredentials  = errors.New("wrong mobile or password")
	ErrTooManyAttempts = errors.New("too many failed attempts")
	ErrNoSession       = errors.New("session not found")
)

// UserService регистрация, вход и сессии. Неудачные входы считаются в
// фиксированном окне по идентичности клиента (адрес); после maxFailures
// вход блокируется до конца окна независимо от правильности пароля.
type UserService struct {
	repo        domain.Repository
	sessions    domain.SessionRepository
	throttleCfg config.ThrottleConfig
	sessionTTL  time.Duration
	logger      zerolog.Logger
}

func NewUserService(repo domain.Repository, sessions domain.SessionRepository, throttleCfg config.ThrottleConfig, sessionTTL time.Duration, logger *zerolog.Logger) *UserService {
	if sessionTTL <= 0 {
		sessionTTL = time.Duration(models.DefaultSessionTTL) * time.Second
	}
	return &UserService{
		repo:        repo,
		sessions:    sessions,
		throttleCfg: throttleCfg,
		sessionTTL:  sessionTTL,
		logger:      logging.Component(logger, "user-service"),
	}
}

// Register создает пользователя. Имя по умолчанию совпадает с номером.
func (s *UserService) Register(ctx context.Context, mobile, password string) (*models.User, error) {
	if mobile == "" || password == "" {
		return nil, errors.New("mobile and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         mobile,
		Mobile:       mobile,
		PasswordHash: string(hash),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrMobileExists) {
			return nil, ErrMobileTaken
		}
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Login проверяет пароль и открывает сессию. identity — идентичность
// клиента для счетчика неудач (адрес источника запроса).
//
// Порядок строгий: сначала проверка блокировки, и только потом пароль.
// Заблокированный клиент получает отказ даже с верным паролем.
func (s *UserService) Login(ctx context.Context, mobile, password, identity string) (*models.Session, error) {
	locked, err := s.sessions.IsLocked(ctx, identity, s.throttleCfg.MaxFailures)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to check login lock, allowing attempt")
	}
	if locked {
		metrics.IncLoginLockout()
		s.logger.Warn().Str("identity", identity).Msg("login rejected, identity locked out")
		return nil, ErrTooManyAttempts
	}

	user, err := s.repo.GetUserByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.recordFailure(ctx, identity)
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.recordFailure(ctx, identity)
		return nil, ErrBadCredentials
	}

	// Успех сбрасывает счетчик, окно начинается заново.
	if err := s.sessions.ResetFailures(ctx, identity); err != nil {
		s.logger.Warn().Err(err).Msg("failed to reset login failures")
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Name:      user.Name,
		Mobile:    user.Mobile,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.SetSession(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user logged in")
	return session, nil
}

func (s *UserService) recordFailure(ctx context.Context, identity string) {
	if err := s.sessions.RecordFailure(ctx, identity, s.throttleCfg.Window()); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record login failure")
	}
}

// Authenticate возвращает сессию по токену из заголовка запроса.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	return session, nil
}

func (s *UserService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.ClearSession(ctx, token)
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// SetName меняет отображаемое имя. Копия имени в сессии обновляется тоже,
// иначе до конца TTL сессии ответы несли бы старое имя.
func (s *UserService) SetName(ctx context.Context, session *models.Session, name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if err := s.repo.UpdateUserName(ctx, session.UserID, name); err != nil {
		return err
	}
	session.Name = name
	if err := s.sessions.SetSession(ctx, session); err != nil {
		s.logger.Warn().Err(err).Msg("failed to refresh session name")
	}
	return nil
}

// SetAvatar сохраняет ссылку на аватар. Само хранилище картинок снаружи,
// сервис оперирует только URL.
func (s *UserService) SetAvatar(ctx context.Context, userID int64, avatarURL string) error {
	if avatarURL == "" {
		return errors.New("avatar url is required")
	}
	return s.repo.UpdateUserAvatar(ctx, userID, avatarURL)
}

package volunteers

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"sms-relay/internal/auth"
	"sms-relay/internal/events"
	"sms-relay/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid volunteer input")
)

const minPasswordLen = 8

// TokenIssuer is implemented by auth.Manager.
type TokenIssuer interface {
	IssuePair(now time.Time, id auth.Identity) (auth.TokenPair, error)
	Verify(token string, expected auth.TokenType, now time.Time) (auth.Claims, error)
}

type Service struct {
	repo            Repository
	tokens          TokenIssuer
	pub             events.Publisher
	presenceTimeout time.Duration
	now             func() time.Time
}

type Option func(*Service)

// WithPublisher announces presence changes on the change feed.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.pub = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, tokens TokenIssuer, presenceTimeout time.Duration, opts ...Option) *Service {
	if presenceTimeout <= 0 {
		presenceTimeout = 2 * time.Minute
	}
	s := &Service{
		repo:            repo,
		tokens:          tokens,
		presenceTimeout: presenceTimeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, email, displayName, password string) (Volunteer, error) {
	email = normalizeEmail(email)
	displayName = strings.TrimSpace(displayName)
	if _, err := mail.ParseAddress(email); err != nil || displayName == "" {
		return Volunteer{}, ErrInvalidInput
	}
	if len(password) < minPasswordLen {
		return Volunteer{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Volunteer{}, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(ctx, Volunteer{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	})
}

// Login checks a password and issues a token pair.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Volunteer, auth.TokenPair, error) {
	v, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return Volunteer{}, auth.TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return Volunteer{}, auth.TokenPair{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(v.PasswordHash), []byte(password)); err != nil {
		return Volunteer{}, auth.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.IssueTokens(ctx, v)
	if err != nil {
		return Volunteer{}, auth.TokenPair{}, err
	}
	logger.From(ctx).Info("volunteer logged in", "volunteer_id", v.ID)
	return v, pair, nil
}

// IssueTokens mints a pair for an existing account without a password check.
func (s *Service) IssueTokens(ctx context.Context, v Volunteer) (auth.TokenPair, error) {
	return s.tokens.IssuePair(s.now(), auth.Identity{VolunteerID: v.ID, Email: v.Email, Name: v.DisplayName})
}

// Refresh exchanges a refresh token for a new pair. The account must still exist.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.TokenTypeRefresh, s.now())
	if err != nil {
		return auth.TokenPair{}, ErrInvalidCredentials
	}
	v, err := s.repo.GetByID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return auth.TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return auth.TokenPair{}, err
	}
	return s.IssueTokens(ctx, v)
}

func (s *Service) Get(ctx context.Context, id string) (Volunteer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (Volunteer, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

// Heartbeat marks the volunteer online as of now.
func (s *Service) Heartbeat(ctx context.Context, id string) (Presence, error) {
	return s.setPresence(ctx, id, true)
}

// GoOffline marks the volunteer offline immediately.
func (s *Service) GoOffline(ctx context.Context, id string) (Presence, error) {
	return s.setPresence(ctx, id, false)
}

func (s *Service) setPresence(ctx context.Context, id string, online bool) (Presence, error) {
	now := s.now()
	v, err := s.repo.SetPresence(ctx, id, online, now)
	if err != nil {
		return Presence{}, err
	}
	if s.pub != nil {
		c := events.NewChange(events.EntityVolunteer, events.OpUpdated, v.ID, "", now)
		if err := s.pub.Publish(ctx, c); err != nil {
			logger.From(ctx).Warn("presence notification failed", "volunteer_id", v.ID, "err", err)
		}
	}
	return s.presence(v, now), nil
}

// List reports every volunteer with computed presence. A volunteer whose
// last heartbeat is older than the presence timeout is shown offline.
func (s *Service) List(ctx context.Context) ([]Presence, error) {
	vs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Presence, 0, len(vs))
	for _, v := range vs {
		out = append(out, s.presence(v, now))
	}
	return out, nil
}

func (s *Service) presence(v Volunteer, now time.Time) Presence {
	online := v.IsOnline && v.LastSeen != nil && now.Sub(*v.LastSeen) <= s.presenceTimeout
	return Presence{ID: v.ID, DisplayName: v.DisplayName, Online: online, LastSeen: v.LastSeen}
}

package services

//go:generate mockgen -source=auth.go -destination=auth_mock.go -package=services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/logger"
	"github.com/sbilibin2017/gw-coinflip-ledger/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Error variables
var (
	ErrUserAlreadyExists  = errors.New("username or email already exists")
	ErrUserDoesNotExist   = errors.New("username does not exist")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUserData    = errors.New("username, password and email are required")
)

// UserReader defines read-only operations for users.
type UserReader interface {
	GetByUsernameOrEmail(ctx context.Context, username *string, email *string) (*models.UserDB, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Save(ctx context.Context, username string, passwordHash string, email string) (uuid.UUID, error)
}

// AccountCreator opens the ledger account of a new user.
type AccountCreator interface {
	Create(ctx context.Context, accountID uuid.UUID, startingBalance decimal.Decimal) error
}

// JWTGenerator defines an interface for generating JWT tokens.
type JWTGenerator interface {
	Generate(ctx context.Context, userID uuid.UUID) (string, error)
}

// AuthService handles registration and login.
type AuthService struct {
	tx              TxRunner
	reader          UserReader
	writer          UserWriter
	accounts        AccountCreator
	jwt             JWTGenerator
	startingBalance decimal.Decimal
}

// NewAuthService creates a new AuthService instance.
// Every registered user gets an account funded with startingBalance.
func NewAuthService(
	tx TxRunner,
	reader UserReader,
	writer UserWriter,
	accounts AccountCreator,
	jwt JWTGenerator,
	startingBalance decimal.Decimal,
) *AuthService {
	return &AuthService{
		tx:              tx,
		reader:          reader,
		writer:          writer,
		accounts:        accounts,
		jwt:             jwt,
		startingBalance: startingBalance,
	}
}

// Register registers a new user and opens its account in one unit of work.
func (svc *AuthService) Register(ctx context.Context, username, password, email string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" || email == "" {
		return ErrInvalidUserData
	}

	user, err := svc.reader.GetByUsernameOrEmail(ctx, &username, &email)
	if err != nil {
		logger.Log.Errorw("failed to check user exists", "err", err)
		return err
	}
	if user != nil {
		logger.Log.Errorw("user already exists", "username", username, "email", email)
		return ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return err
	}

	err = svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		userID, err := svc.writer.Save(ctx, username, string(hashedPassword), email)
		if err != nil {
			return err
		}
		return svc.accounts.Create(ctx, userID, svc.startingBalance)
	})
	if errors.Is(err, models.ErrDuplicate) {
		// lost a race with a concurrent registration
		logger.Log.Errorw("user already exists", "username", username, "email", email)
		return ErrUserAlreadyExists
	}
	if err != nil {
		logger.Log.Errorw("failed to save user", "err", err)
		return err
	}

	logger.Log.Infow("user registered", "username", username, "starting_balance", svc.startingBalance.String())
	return nil
}

// Login authenticates a user and returns a JWT token.
func (svc *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := svc.reader.GetByUsernameOrEmail(ctx, &username, nil)
	if err != nil {
		logger.Log.Errorw("failed to get user", "err", err)
		return "", err
	}
	if user == nil {
		logger.Log.Errorw("user does not exist", "username", username)
		return "", ErrUserDoesNotExist
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Log.Errorw("invalid credentials", "username", username)
		return "", ErrInvalidCredentials
	}

	token, err := svc.jwt.Generate(ctx, user.UserID)
	if err != nil {
		logger.Log.Errorw("failed to generate JWT", "err", err)
		return "", err
	}

	return token, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chillistore/internal/models"
	"chillistore/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CallerContext is what a request knows about its caller before authorization.
type CallerContext struct {
	Token  string
	Locale string
}

// AuthorizedSession describes a caller allowed to mutate the catalog.
type AuthorizedSession struct {
	UserID   string
	Username string
	StoreID  string
	Locale   string
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	storeID    string
	tokenDurat time.Duration // Duration for which JWT is valid
	logger     *zap.Logger
}

// NewAuthService creates a new AuthService guarding the catalog of storeID.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret, storeID string, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		storeID:    storeID,
		tokenDurat: 24 * time.Hour,
		logger:     logger,
	}
}

// RegisterUser registers a new customer, hashes their password, and saves them.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	user.Role = models.RoleCustomer
	user.StoreID = ""
	return s.createUser(ctx, user)
}

// EnsureShopOwner creates the owner account for the configured store unless the username exists.
func (s *AuthService) EnsureShopOwner(ctx context.Context, username, email, password string) (*models.User, error) {
	if existing, err := s.userRepo.GetByUsername(ctx, username); err == nil && existing != nil {
		return existing, nil
	}
	owner := &models.User{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleShopOwner,
		StoreID:  s.storeID,
	}
	if err := s.createUser(ctx, owner); err != nil {
		return nil, err
	}
	return owner, nil
}

func (s *AuthService) createUser(ctx context.Context, user *models.User) error {
	// Check if username or email already exists
	if existingUser, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil && existingUser != nil {
		return fmt.Errorf("username '%s' already taken", user.Username)
	}
	if existingUser, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil && existingUser != nil {
		return fmt.Errorf("email '%s' already registered", user.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

// LoginUser authenticates a user and returns a JWT token if successful.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      now.Add(s.tokenDurat).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// Authorize decides whether the caller may mutate the catalog. Nothing is cached:
// the token is verified and the user reloaded on every call.
func (s *AuthService) Authorize(ctx context.Context, caller CallerContext) (*AuthorizedSession, error) {
	deny := func(reason string, err error) (*AuthorizedSession, error) {
		fields := []zap.Field{zap.String("reason", reason)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		s.logger.Debug("authorization denied", fields...)
		return nil, ErrUnauthorized
	}

	if caller.Token == "" {
		return deny("missing token", nil)
	}
	claims, err := s.ValidateToken(caller.Token)
	if err != nil {
		return deny("invalid token", err)
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return deny("token has no subject", nil)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return deny("user no longer exists", nil)
		}
		return deny("user lookup failed", err)
	}
	if user.Role != models.RoleShopOwner {
		return deny("not a shop owner", nil)
	}
	if user.StoreID != s.storeID {
		return deny("owner of another store", nil)
	}

	return &AuthorizedSession{
		UserID:   user.ID,
		Username: user.Username,
		StoreID:  user.StoreID,
		Locale:   caller.Locale,
	}, nil
}

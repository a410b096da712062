package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chillistore/internal/models"
	"chillistore/internal/repositories"
	"chillistore/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testJWTSecret = "test_jwt_secret"
	testStoreID   = "store-1"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func TestAuthService_RegisterUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, testStoreID, nil)

	// Test successful registration
	user := &models.User{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "password123",
		Role:     models.RoleShopOwner,
	}

	mockRepo.On("GetByUsername", user.Username).Return(nil, repositories.ErrUserNotFound).Once()
	mockRepo.On("GetByEmail", user.Email).Return(nil, repositories.ErrUserNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := authService.RegisterUser(ctx, user)
	assert.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, user.Role, "self-registration never grants owner rights")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	mockRepo.AssertExpectations(t)

	// Test username already taken
	mockRepo.On("GetByUsername", user.Username).Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, user)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "username 'testuser' already taken")
	mockRepo.AssertExpectations(t)

	// Test email already registered
	mockRepo.On("GetByUsername", user.Username).Return(nil, repositories.ErrUserNotFound).Once()
	mockRepo.On("GetByEmail", user.Email).Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, user)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "email 'test@example.com' already registered")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_EnsureShopOwner(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, testStoreID, nil)

	mockRepo.On("GetByUsername", "owner").Return(nil, repositories.ErrUserNotFound).Twice()
	mockRepo.On("GetByEmail", "owner@example.com").Return(nil, repositories.ErrUserNotFound).Once()
	mockRepo.On("Create", mock.MatchedBy(func(u *models.User) bool {
		return u.Role == models.RoleShopOwner && u.StoreID == testStoreID
	})).Return(nil).Once()

	owner, err := authService.EnsureShopOwner(ctx, "owner", "owner@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleShopOwner, owner.Role)
	mockRepo.AssertExpectations(t)

	// Existing owner is returned untouched
	existing := &models.User{ID: "u-1", Username: "owner"}
	mockRepo.On("GetByUsername", "owner").Return(existing, nil).Once()
	owner, err = authService.EnsureShopOwner(ctx, "owner", "owner@example.com", "secret123")
	require.NoError(t, err)
	assert.Same(t, existing, owner)
}

func TestAuthService_LoginUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, testStoreID, nil)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Username: "testuser",
		Email:    "test@example.com",
		Password: string(hashedPassword),
	}

	// Test successful login
	mockRepo.On("GetByUsername", user.Username).Return(user, nil).Once()
	token, err := authService.LoginUser(ctx, "testuser", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	assert.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, user.Username, claims["username"])
	mockRepo.AssertExpectations(t)

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByUsername", user.Username).Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, "testuser", "wrongpassword")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")

	// Test invalid credentials (user not found)
	mockRepo.On("GetByUsername", "nonexistentuser").Return(nil, repositories.ErrUserNotFound).Once()
	_, err = authService.LoginUser(ctx, "nonexistentuser", "password123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret, testStoreID, nil)

	validTokenString := signToken(t, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "testuser",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	claims, err := authService.ValidateToken(validTokenString)
	assert.NoError(t, err)
	assert.Equal(t, "user-123", claims["user_id"])

	_, err = authService.ValidateToken("invalid.token.string")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	expiredTokenString := signToken(t, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	_, err = authService.ValidateToken(expiredTokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestAuthService_Authorize(t *testing.T) {
	ctx := context.Background()
	token := signToken(t, jwt.MapClaims{"user_id": "owner-1", "exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name    string
		caller  services.CallerContext
		user    *models.User
		lookErr error
		wantErr bool
	}{
		{
			name:   "shop owner of this store",
			caller: services.CallerContext{Token: token, Locale: "fr"},
			user:   &models.User{ID: "owner-1", Username: "o", Role: models.RoleShopOwner, StoreID: testStoreID},
		},
		{
			name:    "customer",
			caller:  services.CallerContext{Token: token},
			user:    &models.User{ID: "owner-1", Role: models.RoleCustomer, StoreID: testStoreID},
			wantErr: true,
		},
		{
			name:    "owner of another store",
			caller:  services.CallerContext{Token: token},
			user:    &models.User{ID: "owner-1", Role: models.RoleShopOwner, StoreID: "elsewhere"},
			wantErr: true,
		},
		{
			name:    "user deleted since login",
			caller:  services.CallerContext{Token: token},
			lookErr: repositories.ErrUserNotFound,
			wantErr: true,
		},
		{
			name:    "no token",
			caller:  services.CallerContext{},
			wantErr: true,
		},
		{
			name:    "garbage token",
			caller:  services.CallerContext{Token: "nope"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			if tt.user != nil || tt.lookErr != nil {
				if tt.user != nil {
					mockRepo.On("GetByID", "owner-1").Return(tt.user, nil).Once()
				} else {
					mockRepo.On("GetByID", "owner-1").Return(nil, tt.lookErr).Once()
				}
			}
			authService := services.NewAuthService(mockRepo, testJWTSecret, testStoreID, nil)

			session, err := authService.Authorize(ctx, tt.caller)
			if tt.wantErr {
				assert.ErrorIs(t, err, services.ErrUnauthorized)
				assert.Nil(t, session)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "owner-1", session.UserID)
				assert.Equal(t, "fr", session.Locale)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_AuthorizeReloadsUserEveryCall(t *testing.T) {
	ctx := context.Background()
	token := signToken(t, jwt.MapClaims{"user_id": "owner-1", "exp": time.Now().Add(time.Hour).Unix()})

	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByID", "owner-1").
		Return(&models.User{ID: "owner-1", Role: models.RoleShopOwner, StoreID: testStoreID}, nil).Once()
	mockRepo.On("GetByID", "owner-1").
		Return(&models.User{ID: "owner-1", Role: models.RoleCustomer, StoreID: testStoreID}, nil).Once()
	authService := services.NewAuthService(mockRepo, testJWTSecret, testStoreID, nil)

	_, err := authService.Authorize(ctx, services.CallerContext{Token: token})
	require.NoError(t, err)

	_, err = authService.Authorize(ctx, services.CallerContext{Token: token})
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	mockRepo.AssertExpectations(t)
}

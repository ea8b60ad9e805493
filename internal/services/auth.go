package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/apierr"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/ctxutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

type JWTClaims struct {
	jwt.RegisteredClaims
}

type SignInResult struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresIn   int64              `json:"expires_in"`
	Profile     *types.UserProfile `json:"profile"`
}

type AuthService interface {
	SignInWithGoogle(ctx context.Context, idToken string) (*SignInResult, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	log          *logger.Logger
	verifier     IDTokenVerifier
	profiles     ProfileService
	jwtSecretKey []byte
	accessTTL    time.Duration
	now          func() time.Time
}

func NewAuthService(baseLog *logger.Logger, verifier IDTokenVerifier, profiles ProfileService, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		verifier:     verifier,
		profiles:     profiles,
		jwtSecretKey: []byte(jwtSecretKey),
		accessTTL:    accessTTL,
		now:          time.Now,
	}
}

func (as *authService) SignInWithGoogle(ctx context.Context, idToken string) (*SignInResult, error) {
	if as.verifier == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "sign_in_unavailable", fmt.Errorf("google sign-in is not configured"))
	}
	ident, err := as.verifier.VerifyGoogleIDToken(ctx, idToken)
	if err != nil {
		as.log.Warn("Rejected Google id token", "error", err)
		return nil, apierr.New(http.StatusUnauthorized, "invalid_id_token", err)
	}
	if ident.Sub == "" || ident.Email == "" {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_id_token", fmt.Errorf("id token carries no subject or email"))
	}
	if !ident.EmailVerified {
		return nil, apierr.New(http.StatusUnauthorized, "email_not_verified", fmt.Errorf("google account email is not verified"))
	}

	profile, err := as.profiles.EnsureProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	token, err := as.generateAccessToken(profile.ID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	as.log.Info("User signed in", "user_id", profile.ID, "status", profile.Status)
	return &SignInResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(as.accessTTL / time.Second),
		Profile:     profile,
	}, nil
}

func (as *authService) generateAccessToken(userID uuid.UUID) (string, error) {
	now := as.now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.jwtSecretKey)
}

// SetContextFromToken attaches the caller to ctx. An empty token leaves ctx unchanged.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, nil
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.now))
	if err != nil {
		return ctx, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("invalid or expired JWT token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return ctx, fmt.Errorf("invalid user id in token")
	}
	sessionID, _ := uuid.Parse(claims.ID)
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		UserID:      userID,
		SessionID:   sessionID,
		TokenString: tokenString,
	}), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}

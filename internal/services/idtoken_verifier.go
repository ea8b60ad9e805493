package services

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

type ExternalIdentity struct {
	Provider      string
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type IDTokenVerifier interface {
	VerifyGoogleIDToken(ctx context.Context, idToken string) (*ExternalIdentity, error)
}

type googleIDTokenVerifier struct {
	validator *idtoken.Validator
	audience  string
}

func NewGoogleIDTokenVerifier(ctx context.Context, audience string, opts ...option.ClientOption) (IDTokenVerifier, error) {
	audience = strings.TrimSpace(audience)
	if audience == "" {
		return nil, fmt.Errorf("GOOGLE_OIDC_CLIENT_ID is required")
	}
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("idtoken validator: %w", err)
	}
	return &googleIDTokenVerifier{validator: v, audience: audience}, nil
}

func (v *googleIDTokenVerifier) VerifyGoogleIDToken(ctx context.Context, idToken string) (*ExternalIdentity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("id_token is empty")
	}
	payload, err := v.validator.Validate(ctx, idToken, v.audience)
	if err != nil {
		return nil, fmt.Errorf("validate id_token: %w", err)
	}
	return identityFromClaims(payload.Subject, payload.Claims), nil
}

func identityFromClaims(sub string, claims map[string]interface{}) *ExternalIdentity {
	str := func(k string) string {
		if v, ok := claims[k].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	verified := false
	switch v := claims["email_verified"].(type) {
	case bool:
		verified = v
	case string:
		verified = strings.EqualFold(v, "true")
	}
	return &ExternalIdentity{
		Provider:      "google",
		Sub:           strings.TrimSpace(sub),
		Email:         strings.ToLower(str("email")),
		EmailVerified: verified,
		Name:          str("name"),
		Picture:       str("picture"),
	}
}

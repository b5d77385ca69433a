package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim is the identity the authentication gate signs into the bearer token.
type JwtCustomClaim struct {
	UserId      string   `json:"user_id"`
	Role        string   `json:"role"`
	StoreId     string   `json:"store_id"`
	Permissions []string `json:"permissions"`
	jwt.StandardClaims
}

func (c JwtCustomClaim) Identity() Identity {
	return Identity{
		UserId:      c.UserId,
		Role:        c.Role,
		StoreId:     c.StoreId,
		Permissions: c.Permissions,
	}
}

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("pos-dev-secret")
	}
	return []byte(secret)
}

// JwtGenerate signs an identity token. The gate owns issuing in production; ops tools and tests use this.
func JwtGenerate(identity Identity) (string, error) {
	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || tokenLifespan <= 0 {
		tokenLifespan = 12
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		UserId:      identity.UserId,
		Role:        identity.Role,
		StoreId:     identity.StoreId,
		Permissions: identity.Permissions,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour * time.Duration(tokenLifespan)).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})

	return t.SignedString(getJwtSecret())
}

// ParseIdentityToken reads the claims of a token the gate has already verified.
// The signature is not checked again here.
func ParseIdentityToken(token string) (Identity, error) {
	claims := &JwtCustomClaim{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("parse identity token: %w", err)
	}
	if claims.UserId == "" {
		return Identity{}, errors.New("identity token has no user_id")
	}
	return claims.Identity(), nil
}

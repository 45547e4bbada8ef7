package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const buyerContextKey = "buyer"

// AuthMiddleware accepts HS256 bearer tokens issued by the identity provider.
// The subject claim is the buyer id.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		buyer, err := parseBuyer(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(buyerContextKey, buyer)
		c.Next()
	}
}

func parseBuyer(tokenString string, secret []byte) (models.Buyer, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Buyer{}, err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return models.Buyer{}, err
	}
	if sub == "" {
		return models.Buyer{}, errors.New("token has no subject")
	}

	email, _ := claims["email"].(string)
	return models.Buyer{ID: sub, Email: email}, nil
}

// BuyerFromContext returns the buyer set by AuthMiddleware.
func BuyerFromContext(c *gin.Context) (models.Buyer, error) {
	v, ok := c.Get(buyerContextKey)
	if !ok {
		return models.Buyer{}, fmt.Errorf("no authenticated buyer")
	}
	buyer, ok := v.(models.Buyer)
	if !ok {
		return models.Buyer{}, fmt.Errorf("unexpected buyer type %T", v)
	}
	return buyer, nil
}

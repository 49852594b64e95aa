// Package auth validates bearer tokens and exposes the caller's company.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	companyIDKey = "company_id"
	subjectKey   = "subject"
)

var ErrMissingCompany = errors.New("token has no company_id")

// Claims are the token fields the API relies on.
type Claims struct {
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

// Middleware rejects requests without a valid HS256 bearer token carrying a
// company_id claim.
func Middleware(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := &Claims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		companyID, err := uuid.Parse(claims.CompanyID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingCompany.Error()})
			return
		}

		c.Set(companyIDKey, companyID)
		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

// CompanyID returns the company of the authenticated caller.
func CompanyID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(companyIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Subject returns the token subject, usually the user id.
func Subject(c *gin.Context) string {
	return c.GetString(subjectKey)
}

// Me answers with the identity carried by the token.
func Me(c *gin.Context) {
	companyID, _ := CompanyID(c)
	c.JSON(http.StatusOK, gin.H{"company_id": companyID, "subject": Subject(c)})
}

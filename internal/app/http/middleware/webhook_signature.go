package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"membergate/internal/observability/logger"
)

const maxWebhookBody = 1 << 20

type webhookClaims struct {
	SHA256 string `json:"sha256"`
	jwt.RegisteredClaims
}

// IdentityWebhookSignature checks the X-Webhook-Signature JWT GoTrue attaches
// to lifecycle webhooks: HS256, issuer "gotrue", and a sha256 claim equal to
// the hex digest of the raw body. An empty secret disables the check.
func IdentityWebhookSignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Error reading request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		claims := &webhookClaims{}
		_, err = jwt.ParseWithClaims(c.GetHeader("X-Webhook-Signature"), claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("gotrue"))
		if err != nil {
			logger.From(c.Request.Context()).Warn("identity webhook signature rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
			return
		}

		sum := sha256.Sum256(body)
		if claims.SHA256 != hex.EncodeToString(sum[:]) {
			logger.From(c.Request.Context()).Warn("identity webhook body digest mismatch")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
			return
		}
		c.Next()
	}
}

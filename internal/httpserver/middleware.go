package httpserver

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"orderdesk/internal/domain"
	"orderdesk/internal/idempotency"
)

const customerCtxKey = "customer"

// requestLogger logs one line per request, at warn for client errors and
// error for server errors.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("remote_ip", c.ClientIP()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.Error("panic recovered", zap.Any("panic", rec), zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// optionalCustomer attaches the customer when a bearer token is present.
// A token that does not resolve is rejected rather than treated as a guest.
func optionalCustomer(customers CustomerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		customer, err := customers.LookupByToken(c.Request.Context(), token)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.Set(customerCtxKey, customer)
		c.Next()
	}
}

func requireCustomer(customers CustomerService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			writeError(c, logger, domain.Newf(domain.ErrUnauthorized, "customer token required"))
			return
		}
		customer, err := customers.LookupByToken(c.Request.Context(), token)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.Set(customerCtxKey, customer)
		c.Next()
	}
}

func customerFrom(c *gin.Context) *domain.Customer {
	v, ok := c.Get(customerCtxKey)
	if !ok {
		return nil
	}
	customer, _ := v.(*domain.Customer)
	return customer
}

// requireStaff checks the shared staff key. With no key configured every
// staff request is rejected.
func requireStaff(key string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(headerStaffKey)
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			writeError(c, logger, domain.Newf(domain.ErrUnauthorized, "staff key required"))
			return
		}
		c.Next()
	}
}

// idempotencyGuard reserves the Idempotency-Key of the caller for ttl. A
// second request with the same key fails while the key is held. The key is
// released when the request fails so the client can retry. Requests without
// a key pass through.
func idempotencyGuard(store idempotency.Store, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(headerIdempotency))
		if key == "" {
			c.Next()
			return
		}
		owner := "guest"
		if customer := customerFrom(c); customer != nil {
			owner = customer.ID
		}
		scoped := idempotency.Scope(owner, c.FullPath()+":"+key)

		ctx := c.Request.Context()
		reserved, err := store.Reserve(ctx, scoped, ttl)
		if err != nil {
			logger.Warn("idempotency store unavailable, proceeding", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			writeError(c, logger, domain.ErrDuplicateRequest)
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Release(context.WithoutCancel(ctx), scoped); err != nil {
				logger.Warn("release idempotency key", zap.String("key", scoped), zap.Error(err))
			}
		}
	}
}

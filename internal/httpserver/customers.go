package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"orderdesk/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	customer, token, err := h.deps.Customers.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"customer":     customer,
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   h.deps.Customers.AccessTTLSeconds(),
	})
}

func (h *handler) logout(c *gin.Context) {
	if err := h.deps.Customers.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listProducts(c *gin.Context) {
	products, err := h.deps.Catalog.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *handler) getProduct(c *gin.Context) {
	product, err := h.deps.Catalog.GetProduct(c.Request.Context(), c.Param("productID"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *handler) listStatuses(c *gin.Context) {
	statuses, err := h.deps.Orders.ListStatuses(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

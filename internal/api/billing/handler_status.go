package billing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"membergate/internal/infra/identity"
)

func (h *Handler) status(c *gin.Context, req request) {
	email, msg := validateEmail(req.Email)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	u, err := h.Service.Accounts.FindByEmail(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"found":   false,
			"email":   email,
			"status":  "missing",
			"active":  false,
			"message": "No account found for this email address.",
		})
		return
	}
	if err != nil {
		internalError(c, "status lookup failed", err)
		return
	}

	view, err := h.Service.Check(ctx, *u)
	if err != nil {
		internalError(c, "status check failed", err)
		return
	}
	view.Email = email

	c.JSON(http.StatusOK, statusResponse{StatusView: view, AvailablePlans: h.availablePlans(ctx)})
}

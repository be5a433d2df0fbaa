package handler

import (
	"net/http"

	"github.com/erp/storefront/internal/application/servercart"
	"github.com/erp/storefront/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CartHandler exposes the server-side cart
type CartHandler struct {
	BaseHandler
	service *servercart.Service
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(service *servercart.Service) *CartHandler {
	return &CartHandler{service: service}
}

// RegisterRoutes mounts the cart endpoints under rg
func (h *CartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/cart", h.Get)
	rg.POST("/cart/merge", h.Merge)
}

// Get returns the caller's cart as {"cart": [...]}
//
// @Summary      Get cart
// @Description  Return the authenticated user's cart
// @Tags         cart
// @Produce      json
// @Success      200 {object} dto.CartResponse
// @Failure      401 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	lines, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCartResponse(lines))
}

// Merge upserts a batch of lines into the caller's cart and returns the
// result. The batch arrives as {"cartToAdd": [...]} from interactive
// clients or as {"cart": [...]} from the teardown beacon.
//
// @Summary      Merge lines into the cart
// @Description  Upsert lines by product and variant. Send exactly one of cartToAdd or cart.
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        request body dto.MergeRequest true "Lines to merge"
// @Success      200 {object} dto.CartResponse
// @Failure      400 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      413 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Security     BearerAuth
// @Router       /cart/merge [post]
func (h *CartHandler) Merge(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req dto.MergeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lines, ok := req.Lines()
	if !ok {
		h.BadRequest(c, "Exactly one of cartToAdd or cart is required")
		return
	}

	merged, err := h.service.Merge(c.Request.Context(), userID, lines)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCartResponse(merged))
}

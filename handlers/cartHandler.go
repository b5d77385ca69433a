package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/models"
)

// CartService is the cart workflow as seen by the transport.
type CartService interface {
	Create(ctx context.Context, input models.NewCart) (*models.Cart, error)
	Get(ctx context.Context, cartId string) (*models.Cart, error)
	AddItem(ctx context.Context, cartId string, input models.NewCartItem) (*models.Cart, error)
	UpdateItem(ctx context.Context, cartId string, itemId string, input models.CartItemUpdate) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartId string, itemId string) (*models.Cart, error)
	Clear(ctx context.Context, cartId string) (*models.Cart, error)
	Delete(ctx context.Context, cartId string) error
}

type CartHandler struct {
	carts CartService
}

func NewCartHandler(carts CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

func (h *CartHandler) Register(r gin.IRouter) {
	r.POST("/carts", h.create)
	r.GET("/carts/:id", h.get)
	r.DELETE("/carts/:id", h.delete)
	r.POST("/carts/:id/items", h.addItem)
	r.PATCH("/carts/:id/items/:itemId", h.updateItem)
	r.DELETE("/carts/:id/items/:itemId", h.removeItem)
	r.POST("/carts/:id/clear", h.clear)
}

func (h *CartHandler) create(c *gin.Context) {
	var input models.NewCart
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &input); err != nil {
			respondError(c, "createCart", err)
			return
		}
	}
	caller := identity(c)
	if input.StoreId == "" {
		input.StoreId = caller.StoreId
	}
	if input.CashierId == "" {
		input.CashierId = caller.UserId
	}

	cart, err := h.carts.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, "createCart", err)
		return
	}
	respond(c, http.StatusCreated, cart)
}

func (h *CartHandler) get(c *gin.Context) {
	cart, err := h.carts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "getCart", err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *CartHandler) addItem(c *gin.Context) {
	var input models.NewCartItem
	if err := bindJSON(c, &input); err != nil {
		respondError(c, "addItem", err)
		return
	}
	cart, err := h.carts.AddItem(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, "addItem", err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *CartHandler) updateItem(c *gin.Context) {
	var input models.CartItemUpdate
	if err := bindJSON(c, &input); err != nil {
		respondError(c, "updateItem", err)
		return
	}
	cart, err := h.carts.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), input)
	if err != nil {
		respondError(c, "updateItem", err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *CartHandler) removeItem(c *gin.Context) {
	cart, err := h.carts.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, "removeItem", err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *CartHandler) clear(c *gin.Context) {
	cart, err := h.carts.Clear(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "clearCart", err)
		return
	}
	respond(c, http.StatusOK, cart)
}

func (h *CartHandler) delete(c *gin.Context) {
	if err := h.carts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "deleteCart", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": c.Param("id")})
}

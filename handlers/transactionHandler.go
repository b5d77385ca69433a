package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
)

// TransactionService is the transaction workflow as seen by the transport.
type TransactionService interface {
	CreateTransaction(ctx context.Context, input models.NewTransaction) (*models.Transaction, error)
	ProcessPayment(ctx context.Context, transactionId string, payment models.Payment) (*models.Transaction, error)
	VoidTransaction(ctx context.Context, transactionId string, reason string) (*models.Transaction, error)
	GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, filter models.TransactionFilter) (*models.TransactionPage, error)
}

type TransactionHandler struct {
	transactions TransactionService
}

func NewTransactionHandler(transactions TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

func (h *TransactionHandler) Register(r gin.IRouter) {
	r.POST("/transactions", h.create)
	r.GET("/transactions", h.history)
	r.GET("/transactions/:id", h.get)
	r.POST("/transactions/:id/payment", h.pay)
	r.POST("/transactions/:id/void", h.void)
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *TransactionHandler) create(c *gin.Context) {
	var input models.NewTransaction
	if err := bindJSON(c, &input); err != nil {
		respondError(c, "createTransaction", err)
		return
	}
	caller := identity(c)
	if input.StoreId == "" {
		input.StoreId = caller.StoreId
	}
	if input.CashierId == "" {
		input.CashierId = caller.UserId
	}

	txn, err := h.transactions.CreateTransaction(c.Request.Context(), input)
	if err != nil {
		respondError(c, "createTransaction", err)
		return
	}
	respond(c, http.StatusCreated, txn)
}

func (h *TransactionHandler) get(c *gin.Context) {
	txn, err := h.transactions.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "getTransaction", err)
		return
	}
	respond(c, http.StatusOK, txn)
}

func (h *TransactionHandler) history(c *gin.Context) {
	var filter models.TransactionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, "transactionHistory", utils.NewValidationError("invalid query: %v", err))
		return
	}
	if filter.StoreId == "" {
		filter.StoreId = identity(c).StoreId
	}

	page, err := h.transactions.GetTransactionHistory(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "transactionHistory", err)
		return
	}
	respond(c, http.StatusOK, page)
}

func (h *TransactionHandler) pay(c *gin.Context) {
	var payment models.Payment
	if err := bindJSON(c, &payment); err != nil {
		respondError(c, "processPayment", err)
		return
	}
	txn, err := h.transactions.ProcessPayment(c.Request.Context(), c.Param("id"), payment)
	if err != nil {
		respondError(c, "processPayment", err)
		return
	}
	respond(c, http.StatusOK, txn)
}

func (h *TransactionHandler) void(c *gin.Context) {
	var req voidRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, "voidTransaction", err)
		return
	}
	txn, err := h.transactions.VoidTransaction(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, "voidTransaction", err)
		return
	}
	respond(c, http.StatusOK, txn)
}

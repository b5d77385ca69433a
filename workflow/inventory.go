package workflow

import "github.com/mmdatafocus/pos_backend/models"

// settlementMovements derives the stock changes a settlement applies: a sale
// removes each line's quantity, a return puts it back, a void-type transaction
// touches nothing.
func settlementMovements(txn *models.Transaction) []models.StockMovement {
	sign := txn.Type.StockSign()
	if sign == 0 {
		return nil
	}
	movementType := models.MovementTypeSale
	if txn.Type == models.TransactionTypeReturn {
		movementType = models.MovementTypeReturn
	}
	movements := make([]models.StockMovement, 0, len(txn.Items))
	for _, item := range txn.Items {
		movements = append(movements, models.StockMovement{
			ProductId:         item.ProductId,
			TransactionItemId: item.ID,
			Quantity:          sign * item.Quantity,
			MovementType:      movementType,
		})
	}
	return movements
}

// reversalMovements negates the settlement movements for a void.
func reversalMovements(txn *models.Transaction) []models.StockMovement {
	movements := settlementMovements(txn)
	for i := range movements {
		movements[i].Quantity = -movements[i].Quantity
		movements[i].MovementType = models.MovementTypeVoidReversal
	}
	return movements
}

package models

// ReceiptSequence holds the last receipt suffix issued per store and business day.
type ReceiptSequence struct {
	StoreId      string `gorm:"size:64;primaryKey;autoIncrement:false" json:"store_id"`
	BusinessDate string `gorm:"size:8;primaryKey;autoIncrement:false" json:"business_date"`
	LastSeq      int    `gorm:"not null;default:0" json:"last_seq"`
}

package enums

import "fmt"

// StockType describes how a product's availability is tracked.
type StockType string

const (
	StockTypeInStock    StockType = "in_stock"
	StockTypeLimited    StockType = "limited"
	StockTypeOnePiece   StockType = "one_piece"
	StockTypeOutOfStock StockType = "out_of_stock"
)

var validStockTypes = []StockType{
	StockTypeInStock,
	StockTypeLimited,
	StockTypeOnePiece,
	StockTypeOutOfStock,
}

// String implements fmt.Stringer.
func (s StockType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockType.
func (s StockType) IsValid() bool {
	for _, candidate := range validStockTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// TracksQuantity reports whether stock quantity is meaningful for the type.
func (s StockType) TracksQuantity() bool {
	return s == StockTypeLimited
}

// ParseStockType converts raw input into a StockType.
func ParseStockType(value string) (StockType, error) {
	for _, candidate := range validStockTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock type %q", value)
}

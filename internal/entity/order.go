package entity

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Order is a monetary order placed by a customer.
//
// CustomerID is set by NewOrder and is not meant to be reassigned; the order
// repository checks it against the customers table on insert.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:ord"`

	OrderID    uuid.UUID       `bun:"order_id,pk,type:varchar(36)" json:"order_id"`
	CustomerID uuid.UUID       `bun:"customer_id,notnull,type:varchar(36)" json:"customer_id"`
	Value      decimal.Decimal `bun:"value,notnull,type:decimal(12,2)" json:"value"`
}

// NewOrder creates an order for the given customer.
func NewOrder(customerID uuid.UUID, value decimal.Decimal) *Order {
	return &Order{
		OrderID:    uuid.New(),
		CustomerID: customerID,
		Value:      value.Round(2),
	}
}

// Total formats the order value as an amount of unit.
func (o Order) Total(unit currency.Unit) string {
	return FormatAmount(unit, o.Value)
}

func (o Order) String() string {
	return fmt.Sprintf("order %s customer %s value %s", o.OrderID, o.CustomerID, o.Value.StringFixed(2))
}

// FormatAmount renders value with the currency symbol of unit, e.g. "$ 12.50".
func FormatAmount(unit currency.Unit, value decimal.Decimal) string {
	return message.NewPrinter(language.English).Sprint(currency.Symbol(unit.Amount(value.InexactFloat64())))
}

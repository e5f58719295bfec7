package dto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/Additional-Code/seido/internal/entity"
)

// CustomerRequest is the body accepted when creating or replacing a customer.
type CustomerRequest struct {
	FirstName string `json:"first_name" validate:"required,max=200"`
	LastName  string `json:"last_name" validate:"required,max=200"`
}

// Normalize trims names, collapses inner whitespace and title-cases them.
func (r *CustomerRequest) Normalize() {
	caser := cases.Title(language.Und)
	r.FirstName = caser.String(strings.Join(strings.Fields(r.FirstName), " "))
	r.LastName = caser.String(strings.Join(strings.Fields(r.LastName), " "))
}

// CustomerResponse represents a customer as exposed via transport layers.
type CustomerResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// OrderResponse represents an order with its formatted total.
type OrderResponse struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Value      decimal.Decimal `json:"value"`
	Total      string          `json:"total"`
}

// NewCustomerResponse maps a customer entity.
func NewCustomerResponse(c *entity.Customer) CustomerResponse {
	return CustomerResponse{ID: c.CustomerID, FirstName: c.FirstName, LastName: c.LastName}
}

// NewCustomerResponses maps a slice of customers, never returning nil.
func NewCustomerResponses(customers []entity.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(customers))
	for i := range customers {
		out = append(out, NewCustomerResponse(&customers[i]))
	}
	return out
}

// NewOrderResponses maps orders, formatting totals in unit.
func NewOrderResponses(orders []entity.Order, unit currency.Unit) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderResponse{
			ID:         o.OrderID,
			CustomerID: o.CustomerID,
			Value:      o.Value,
			Total:      o.Total(unit),
		})
	}
	return out
}

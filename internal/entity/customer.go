package entity

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	firstNames = []string{"Harry", "Lisa", "Maria", "Susan", "Joe", "Hans", "Anna", "Johan", "Kim", "Ebba"}
	lastNames  = []string{"Svensson", "Johansson", "Larsson", "Nilsson", "Andersson", "Olsson", "Berg", "Lind"}
)

// Customer is the principal side of the customer/order relation.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:customer"`

	CustomerID uuid.UUID `bun:"customer_id,pk,type:varchar(36)" json:"customer_id"`
	FirstName  string    `bun:"first_name,notnull" json:"first_name"`
	LastName   string    `bun:"last_name,notnull" json:"last_name"`
}

// NewCustomer returns a customer with a fresh identifier and generated names.
func NewCustomer() *Customer {
	return newCustomer(rand.IntN)
}

// NewCustomerFrom is NewCustomer with names drawn from rnd.
func NewCustomerFrom(rnd *rand.Rand) *Customer {
	return newCustomer(rnd.IntN)
}

func newCustomer(intN func(int) int) *Customer {
	return &Customer{
		CustomerID: uuid.New(),
		FirstName:  firstNames[intN(len(firstNames))],
		LastName:   lastNames[intN(len(lastNames))],
	}
}

func (c Customer) String() string {
	return fmt.Sprintf("%s %s (%s)", c.FirstName, c.LastName, c.CustomerID)
}

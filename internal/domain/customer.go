package domain

import "time"

// Customer is the authenticated shopper as returned by the commerce API.
type Customer struct {
	ID         string         `json:"id"`
	Email      string         `json:"email"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Phone      string         `json:"phone,omitempty"`
	HasAccount bool           `json:"has_account"`
	Addresses  []Address      `json:"addresses"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// FullName joins first and last name, skipping empty parts.
func (c *Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// DefaultShippingAddress returns the address flagged as default shipping, or nil.
func (c *Customer) DefaultShippingAddress() *Address {
	for i := range c.Addresses {
		if c.Addresses[i].IsDefaultShipping {
			return &c.Addresses[i]
		}
	}
	return nil
}

// Address is a customer address.
type Address struct {
	ID                string `json:"id"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Company           string `json:"company,omitempty"`
	Address1          string `json:"address_1"`
	Address2          string `json:"address_2,omitempty"`
	City              string `json:"city"`
	Province          string `json:"province,omitempty"`
	PostalCode        string `json:"postal_code"`
	CountryCode       string `json:"country_code"`
	Phone             string `json:"phone,omitempty"`
	IsDefaultShipping bool   `json:"is_default_shipping"`
	IsDefaultBilling  bool   `json:"is_default_billing"`
}

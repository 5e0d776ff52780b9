package domain

// Product is the catalog record used to enrich wishlist items.
type Product struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Handle    string    `json:"handle"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Variants  []Variant `json:"variants"`
}

// Variant returns the product variant with the given ID, or nil.
func (p *Product) Variant(id string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// Variant is a purchasable product variant.
type Variant struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	SKU               string           `json:"sku,omitempty"`
	ProductID         string           `json:"product_id"`
	InventoryQuantity int              `json:"inventory_quantity"`
	CalculatedPrice   *CalculatedPrice `json:"calculated_price,omitempty"`
	Product           *Product         `json:"product,omitempty"`
}

// CalculatedPrice is the region-specific price computed by the backend.
// Amounts are in the currency's minor unit.
type CalculatedPrice struct {
	CalculatedAmount int64  `json:"calculated_amount"`
	OriginalAmount   int64  `json:"original_amount"`
	CurrencyCode     string `json:"currency_code"`
}

// OnSale reports whether the calculated price is below the original price.
func (p *CalculatedPrice) OnSale() bool {
	return p != nil && p.CalculatedAmount < p.OriginalAmount
}

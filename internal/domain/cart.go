package domain

// Cart mirrors the commerce API cart. Amounts are in the currency's minor unit.
type Cart struct {
	ID           string     `json:"id"`
	CustomerID   string     `json:"customer_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	RegionID     string     `json:"region_id,omitempty"`
	CurrencyCode string     `json:"currency_code"`
	Items        []LineItem `json:"items"`
	Subtotal     int64      `json:"subtotal"`
	Total        int64      `json:"total"`
}

// LineItem is a single variant line in the cart.
type LineItem struct {
	ID        string `json:"id"`
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Total     int64  `json:"total"`
}

// ItemCount returns the total quantity across all lines. This is the number
// shown on the cart dropdown trigger.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindLineIndex returns the index of the line with the given ID, or -1.
func (c *Cart) FindLineIndex(lineID string) int {
	if c == nil {
		return -1
	}
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			return i
		}
	}
	return -1
}

// FindVariantLine returns the line holding the given variant, or nil.
func (c *Cart) FindVariantLine(variantID string) *LineItem {
	if c == nil {
		return nil
	}
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			return &c.Items[i]
		}
	}
	return nil
}

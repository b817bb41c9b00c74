package domain

// CartItem is a product reference with a wanted quantity.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart keeps one line per product, in insertion order.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Add merges quantity into the existing line for productID.
func (c *Cart) Add(productID string, quantity int) {
	if quantity <= 0 {
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			return
		}
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity})
}

// SetQuantity replaces a line's quantity; zero or less removes it.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return
		}
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity})
}

func (c *Cart) Remove(productID string) {
	out := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	c.Items = out
}

func (c Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// QuoteLine is a cart line priced against live product data.
type QuoteLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal Money  `json:"line_total"`
	Available int    `json:"available"`
	InStock   bool   `json:"in_stock"`
}

type Quote struct {
	Lines          []QuoteLine `json:"lines"`
	Subtotal       Money       `json:"subtotal"`
	DeliveryCharge Money       `json:"delivery_charge"`
	Discount       Money       `json:"discount"`
	Total          Money       `json:"total"`
	Missing        []string    `json:"missing,omitempty"`
}

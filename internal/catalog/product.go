package catalog

import "time"

// PriceOption is one purchasable size of a product. Price is in paise.
type PriceOption struct {
	Weight string `json:"weight" yaml:"weight" bson:"weight"`
	Price  int64  `json:"price" yaml:"price" bson:"price"`
}

// Discount is a percentage markdown valid until ExpiresAt.
type Discount struct {
	Percentage int       `json:"percentage" yaml:"percentage" bson:"percentage"`
	ExpiresAt  time.Time `json:"expires_at" yaml:"expires_at" bson:"expires_at"`
}

// ActiveAt reports whether the discount applies at now.
func (d *Discount) ActiveAt(now time.Time) bool {
	if d == nil || d.Percentage <= 0 || d.Percentage > 100 {
		return false
	}
	return now.Before(d.ExpiresAt)
}

// Product is a catalog entry. An empty AvailableCities list means the
// product ships to every city.
type Product struct {
	ID              string        `json:"id" yaml:"id" bson:"id"`
	Name            string        `json:"name" yaml:"name" bson:"name"`
	Category        string        `json:"category" yaml:"category" bson:"category"`
	Prices          []PriceOption `json:"prices" yaml:"prices" bson:"prices"`
	AvailableCities []string      `json:"available_cities,omitempty" yaml:"available_cities,omitempty" bson:"available_cities,omitempty"`
	Discount        *Discount     `json:"discount,omitempty" yaml:"discount,omitempty" bson:"discount,omitempty"`
	BestSeller      bool          `json:"best_seller,omitempty" yaml:"best_seller,omitempty" bson:"best_seller,omitempty"`
	Festival        bool          `json:"festival,omitempty" yaml:"festival,omitempty" bson:"festival,omitempty"`
}

// PricedOption is a PriceOption with the discount applied.
type PricedOption struct {
	Weight          string `json:"weight"`
	Price           int64  `json:"price"`
	DiscountedPrice int64  `json:"discounted_price"`
}

// PricedProduct is what the storefront renders.
type PricedProduct struct {
	Product
	DiscountActive bool           `json:"discount_active"`
	PricedOptions  []PricedOption `json:"priced_options"`
}

// PricedAt applies the product discount as of now. Discounted prices are
// rounded half-up to the paisa.
func (p Product) PricedAt(now time.Time) PricedProduct {
	active := p.Discount.ActiveAt(now)
	out := PricedProduct{
		Product:        p,
		DiscountActive: active,
		PricedOptions:  make([]PricedOption, 0, len(p.Prices)),
	}
	for _, opt := range p.Prices {
		price := opt.Price
		if active {
			price = applyPercentage(opt.Price, p.Discount.Percentage)
		}
		out.PricedOptions = append(out.PricedOptions, PricedOption{
			Weight:          opt.Weight,
			Price:           opt.Price,
			DiscountedPrice: price,
		})
	}
	return out
}

func applyPercentage(price int64, pct int) int64 {
	// price * (100 - pct) / 100, rounded half-up
	num := price * int64(100-pct)
	return (num + 50) / 100
}

// PriceAll prices every product at now, preserving order.
func PriceAll(products []Product, now time.Time) []PricedProduct {
	out := make([]PricedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, p.PricedAt(now))
	}
	return out
}

// FindByID returns the product with the given id.
func FindByID(products []Product, id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

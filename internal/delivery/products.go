package delivery

import "homefoods-delivery/internal/catalog"

// FilterProductsByCity keeps the products that ship to city, preserving
// order. A product without AvailableCities ships everywhere. Membership
// uses Normalize on both sides.
func FilterProductsByCity(products []catalog.Product, city string) []catalog.Product {
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if AvailableIn(p, city) {
			out = append(out, p)
		}
	}
	return out
}

// AvailableIn reports whether p ships to city.
func AvailableIn(p catalog.Product, city string) bool {
	if len(p.AvailableCities) == 0 {
		return true
	}
	c := Normalize(city)
	for _, ac := range p.AvailableCities {
		if Normalize(ac) == c {
			return true
		}
	}
	return false
}

package directory

import "homefoods-delivery/internal/delivery"

const (
	andhraPradesh = "Andhra Pradesh"
	telangana     = "Telangana"
)

// Keys of the settings rows the database stores keep.
const (
	freeDeliveryKey = "free_delivery"
	seededKey       = "locations_seeded"
)

// DefaultFreeDelivery applies until an admin saves settings.
var DefaultFreeDelivery = delivery.FreeDeliverySettings{Enabled: true, Threshold: 1000}

// DefaultLocations seeds a new directory. Once seeded, deleting every
// city leaves the directory empty.
func DefaultLocations() []delivery.Location {
	return []delivery.Location{
		{Name: "Guntur", State: andhraPradesh, Charge: 49},
		{Name: "Vijayawada", State: andhraPradesh, Charge: 79},
		{Name: "Visakhapatnam", State: andhraPradesh, Charge: 149},
		{Name: "Tirupati", State: andhraPradesh, Charge: 129},
		{Name: "Kakinada", State: andhraPradesh, Charge: 129},
		{Name: "Rajahmundry", State: andhraPradesh, Charge: 99},
		{Name: "Nellore", State: andhraPradesh, Charge: 99},
		{Name: "Hyderabad", State: telangana, Charge: 129},
		{Name: "Warangal", State: telangana, Charge: 129},
		{Name: "Nizamabad", State: telangana, Charge: 149},
		{Name: "Karimnagar", State: telangana, Charge: 149},
	}
}

package delivery

// ComputeCharge prices delivery to loc for an order of subtotal.
//
// A city-specific threshold wins over the global one; the global one only
// applies when enabled. Reaching the threshold exactly qualifies. remaining
// is how much more the customer needs to spend to get free delivery, or 0.
func ComputeCharge(loc Location, subtotal int, settings FreeDeliverySettings) (charge int, free bool, remaining int) {
	threshold, ok := effectiveThreshold(loc, settings)
	if ok && subtotal >= threshold {
		return 0, true, 0
	}
	if ok {
		remaining = threshold - subtotal
	}
	return loc.Charge, false, remaining
}

func effectiveThreshold(loc Location, settings FreeDeliverySettings) (int, bool) {
	if loc.FreeDeliveryThreshold != nil {
		return *loc.FreeDeliveryThreshold, true
	}
	if settings.Enabled {
		return settings.Threshold, true
	}
	return 0, false
}

func priced(loc Location, conf Confidence, subtotal int, settings FreeDeliverySettings) Resolution {
	charge, free, remaining := ComputeCharge(loc, subtotal, settings)
	return Resolution{
		Location:             &loc,
		Confidence:           conf,
		DeliveryCharge:       charge,
		FreeDeliveryApplied:  free,
		AmountToFreeDelivery: remaining,
	}
}

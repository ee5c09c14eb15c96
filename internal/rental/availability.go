package rental

// Booking is the slice of a rental line the availability rules care
// about: how many units, for which window, under which order status.
type Booking struct {
	OrderID  uint64
	Quantity int
	Window   Window
	Status   Status
}

// Availability is the answer to "can I rent requested units for a window".
// AvailableQuantity can be negative when stock was reduced after bookings
// were made; it is reported as-is.
type Availability struct {
	AvailableQuantity  int  `json:"availableQuantity"`
	RequestedQuantity  int  `json:"requestedQuantity"`
	IsAvailable        bool `json:"available"`
	OverlappingRentals int  `json:"overlappingRentals"`
}

// DefaultQuantity is assumed when a caller does not say how many units it wants.
const DefaultQuantity = 1

// Check combines the owned stock and the quantity already reserved in the
// window.  The product must be active for anything to be available.
func Check(owned int, active bool, reserved, requested int) Availability {
	if requested <= 0 {
		requested = DefaultQuantity
	}
	remaining := owned - reserved
	return Availability{
		AvailableQuantity: remaining,
		RequestedQuantity: requested,
		IsAvailable:       active && remaining >= requested,
	}
}

// ReservedQuantity sums the units of reserving bookings that overlap w and
// counts the distinct orders they belong to.  Bookings of excludeOrderID
// are skipped so an order being edited does not compete with itself; pass
// 0 to count everything.
func ReservedQuantity(bookings []Booking, w Window, excludeOrderID uint64) (qty int, orders int) {
	seen := make(map[uint64]struct{})
	for _, b := range bookings {
		if excludeOrderID != 0 && b.OrderID == excludeOrderID {
			continue
		}
		if !IsReserving(b.Status) || !Overlaps(b.Window, w) {
			continue
		}
		qty += b.Quantity
		if _, ok := seen[b.OrderID]; !ok {
			seen[b.OrderID] = struct{}{}
			orders++
		}
	}
	return qty, orders
}

package auth

// Actor is the authenticated principal supplied by the calling context.
// Authentication itself happens upstream; the core only consumes the
// resolved identity, role, and restaurant assignment.
type Actor struct {
	ID           int64  `json:"id"`
	Role         Role   `json:"role"`
	RestaurantID int64  `json:"restaurant_id"`
	Name         string `json:"name,omitempty"`
}

// Role is a staff role tier.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleWaiter  Role = "waiter"
	RoleKitchen Role = "kitchen"
	RoleCashier Role = "cashier"
)

// Capability names one action a role may perform.
type Capability string

const (
	CapOpenSession    Capability = "open_session"
	CapTakeOrder      Capability = "take_order"
	CapKitchenUpdate  Capability = "kitchen_update"
	CapServe          Capability = "serve"
	CapCancelItem     Capability = "cancel_item"
	CapBill           Capability = "bill"
	CapPay            Capability = "pay"
	CapOverrideStatus Capability = "override_status"
	CapViewKitchen    Capability = "view_kitchen"
	CapViewBilling    Capability = "view_billing"
)

// capabilities is the single source of truth for role gating. Manager-tier
// roles hold every capability.
var capabilities = map[Role]map[Capability]bool{
	RoleAdmin:   allCapabilities(),
	RoleOwner:   allCapabilities(),
	RoleManager: allCapabilities(),
	RoleWaiter: {
		CapOpenSession: true,
		CapTakeOrder:   true,
		CapServe:       true,
		CapCancelItem:  true,
		CapViewKitchen: true,
	},
	RoleKitchen: {
		CapKitchenUpdate: true,
		CapCancelItem:    true,
		CapViewKitchen:   true,
	},
	RoleCashier: {
		CapOpenSession: true,
		CapTakeOrder:   true,
		CapBill:        true,
		CapPay:         true,
		CapViewBilling: true,
	},
}

func allCapabilities() map[Capability]bool {
	return map[Capability]bool{
		CapOpenSession:    true,
		CapTakeOrder:      true,
		CapKitchenUpdate:  true,
		CapServe:          true,
		CapCancelItem:     true,
		CapBill:           true,
		CapPay:            true,
		CapOverrideStatus: true,
		CapViewKitchen:    true,
		CapViewBilling:    true,
	}
}

// Can reports whether the actor's role holds the capability.
func (a Actor) Can(c Capability) bool {
	return capabilities[a.Role][c]
}

// MemberOf reports whether the actor may act within the restaurant. Admins
// operate across tenants.
func (a Actor) MemberOf(restaurantID int64) bool {
	return a.Role == RoleAdmin || a.RestaurantID == restaurantID
}

// IsValidRole reports whether r names a known role.
func IsValidRole(r Role) bool {
	_, ok := capabilities[r]
	return ok
}

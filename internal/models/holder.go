package models

// Holder identifies who a ticket is issued to. It is either SelfService or Manual.
type Holder interface {
	holder()
}

// SelfService is a customer drawing a ticket from their own device.
type SelfService struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Phone string `json:"phone,omitempty" validate:"omitempty,numeric,min=8,max=16"`
}

// DefaultManualName labels walk-in tickets issued without a name.
const DefaultManualName = "Walk-in customer"

// Manual is a walk-in ticket created by staff at the counter.
type Manual struct {
	Name  string `json:"name,omitempty" validate:"max=255"`
	Email string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone string `json:"phone,omitempty" validate:"omitempty,numeric,min=8,max=16"`
}

func (SelfService) holder() {}
func (Manual) holder()      {}

package domain

import "time"

// Customer is an authenticated account. AudienceClass drives discount
// eligibility; the notification flags drive status-change fan-out.
type Customer struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	PasswordHash  string        `json:"-"`
	FirstName     string        `json:"firstName,omitempty"`
	LastName      string        `json:"lastName,omitempty"`
	Phone         string        `json:"phone,omitempty"`
	AudienceClass AudienceClass `json:"audienceClass"`
	IsActive      bool          `json:"isActive"`
	EmailAllowed  bool          `json:"emailAllowed"`
	SMSAllowed    bool          `json:"smsAllowed"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Audience returns the pricing audience for an optional customer.
func Audience(c *Customer) AudienceClass {
	if c == nil || !c.AudienceClass.Valid() {
		return AudienceAll
	}
	return c.AudienceClass
}

// BlackoutWindow is a period in which no order may target.
type BlackoutWindow struct {
	ID     string    `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

// Covers reports whether t falls inside the window.
func (w BlackoutWindow) Covers(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

package model

// Member is an individual belonging to exactly one household. Sacrament
// date/parish fields are meaningful only while the matching occurred flag
// is true.
type Member struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Occupation string `json:"occupation,omitempty"`
	Skills     string `json:"skills,omitempty"`

	Baptised      bool   `json:"baptised"`
	BaptismDate   string `json:"baptism_date,omitempty"`
	BaptismParish string `json:"baptism_parish,omitempty"`

	FirstCommunion       bool   `json:"first_communion"`
	FirstCommunionDate   string `json:"first_communion_date,omitempty"`
	FirstCommunionParish string `json:"first_communion_parish,omitempty"`

	Confirmed          bool   `json:"confirmed"`
	ConfirmationDate   string `json:"confirmation_date,omitempty"`
	ConfirmationParish string `json:"confirmation_parish,omitempty"`
}

// FullName returns the display name used in member listings.
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

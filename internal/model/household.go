package model

// Household is the registering family unit and the unit of authentication.
// It exists client-side only while a session token is held.
type Household struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Address         string   `json:"address,omitempty"`
	City            string   `json:"city,omitempty"`
	Province        string   `json:"province,omitempty"`
	PostalCode      string   `json:"postal_code,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Email           string   `json:"email,omitempty"`
	MarriageStatus  string   `json:"marriage_status,omitempty"`
	TermsAcceptedAt string   `json:"terms_accepted_at,omitempty"`
	Members         []Member `json:"members,omitempty"`
}

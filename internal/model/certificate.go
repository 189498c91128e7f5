package model

// SacramentType identifies one of the three certificate attachment slots a
// member carries. At most one attachment exists per (member, type) pair.
type SacramentType string

const (
	Baptism        SacramentType = "baptism"
	FirstCommunion SacramentType = "first_communion"
	Confirmation   SacramentType = "confirmation"
)

// SacramentTypes lists all attachment slots in display order.
var SacramentTypes = []SacramentType{Baptism, FirstCommunion, Confirmation}

// Valid reports whether t names a known sacrament slot.
func (t SacramentType) Valid() bool {
	switch t {
	case Baptism, FirstCommunion, Confirmation:
		return true
	}
	return false
}

// CertificateInfo describes an uploaded certificate. Content bytes are never
// cached locally after upload; only the name and download reference are.
type CertificateInfo struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

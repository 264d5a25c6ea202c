package types

import "strings"

// Address is the structured shipping/pickup address stored as jsonb on
// orders and deliveries.
type Address struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// Validate reports the missing required fields, if any.
func (a Address) Validate() []string {
	missing := []string{}
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	return missing
}

// GeoPoint returns the address coordinates, or nil when unset.
func (a Address) GeoPoint() *GeoPoint {
	if a.Lat == 0 && a.Lng == 0 {
		return nil
	}
	return &GeoPoint{Lat: a.Lat, Lng: a.Lng}
}

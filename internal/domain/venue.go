package domain

// Venue is a named place returned by the venue lookup service.
// Identity is the provider's ID: a venue is stored once and shared by every
// ping that resolves to it.
//
// The optional detail blocks are stored as structured JSON so they survive a
// round trip through the database unchanged.
type Venue struct {
	ID          string
	Name        string
	Category    string
	Contact     *VenueContact
	Location    *VenueLocation
	URL         *string
	Description *string
	Hours       *VenueHours
}

// VenueContact holds the provider's contact details for a venue.
type VenueContact struct {
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
	Facebook string `json:"facebook,omitempty"`
}

// VenueLocation is the postal location of a venue.
type VenueLocation struct {
	Address   string  `json:"address,omitempty"`
	Locality  string  `json:"locality,omitempty"`
	Region    string  `json:"region,omitempty"`
	Postcode  string  `json:"postcode,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// VenueHours is the provider's opening-hours summary.
type VenueHours struct {
	Display string `json:"display,omitempty"`
	OpenNow *bool  `json:"open_now,omitempty"`
}

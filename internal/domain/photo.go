package domain

import "time"

// Photo is an image attached to a ping. A photo is owned by exactly one ping.
type Photo struct {
	// ID is the photo library's asset identifier.
	ID  string
	URI string

	// StorageRef points at the uploaded copy in remote storage, if any.
	StorageRef *string
	Thumbnail  *string
}

// Asset is one entry of a photo library enumeration. Location is nil when
// the image carries no GPS metadata.
type Asset struct {
	ID        string
	URI       string
	CreatedAt time.Time
	Location  *Coordinates
	Altitude  float64
}

// Photo returns the photo record for the asset.
func (a Asset) Photo() Photo {
	return Photo{ID: a.ID, URI: a.URI}
}

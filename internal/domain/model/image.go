package model

import "time"

// Image is the registry view of an annotated photograph.
type Image struct {
	ID             int64
	Filename       string
	StorageLocator string
	DisplayURL     string
	CreatedAt      time.Time
}

package domain

import "time"

// BaseProduct is a product template that mockups are generated from.
type BaseProduct struct {
	ID          int64
	Name        string
	Description string
	Image       ImageRef
	Parts       string
	Constraints string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reference is an auxiliary image attached to a base product.
type Reference struct {
	ID            int64
	BaseProductID int64
	Description   string
	Image         ImageRef
	CreatedAt     time.Time
}

// Upload is an uploaded file held in memory.
type Upload struct {
	Filename string
	MIME     string
	Data     []byte
}

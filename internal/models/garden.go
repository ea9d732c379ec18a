package models

import "time"

// User is an account known to the identity provider. Only the subject id is
// kept locally.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Space is a named group of plants owned by one user
type Space struct {
	ID       string `json:"id"`
	Tag      string `json:"tag"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	UserID   string `json:"user_id"`
	SensorID string `json:"sensor_id,omitempty"` // empty means readings from any device

	CreatedAt time.Time `json:"created_at"`
}

// Plant links a plant in a space to a catalog record and keeps the ideal
// conditions derived from it when it was added.
type Plant struct {
	ID      string `json:"id"`
	APIID   string `json:"api_id"`
	SpaceID string `json:"space_id"`
	Name    string `json:"name"`
	// IdealTemperature is in °C, IdealBrightness in lux. Both are nil when the
	// catalog lookup failed or the field could not be parsed.
	IdealTemperature *float64 `json:"temperature"`
	IdealBrightness  *float64 `json:"brightness"`
	ImageURL         string   `json:"image_url"`
	Watered          bool     `json:"watered"`

	CreatedAt time.Time `json:"created_at"`
}

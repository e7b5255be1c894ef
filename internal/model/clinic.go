package model

type Clinic struct {
	Base
	Name      string   `db:"name" json:"name"`
	Address   string   `db:"address" json:"address"`
	Phone     string   `db:"phone" json:"phone"`
	Email     string   `db:"email" json:"email"`
	Latitude  *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64 `db:"longitude" json:"longitude,omitempty"`
	IsActive  bool     `db:"is_active" json:"is_active"`
}

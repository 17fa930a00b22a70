package entity

import "time"

// User is keyed by the identity provider's subject claim, so the id is
// stable for the lifetime of the account and never minted locally.
type User struct {
	Id        string
	Name      string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

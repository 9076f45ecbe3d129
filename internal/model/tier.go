package model

// Tier is a named quota class defined in server configuration.
// Accounts reference a tier by id; the tier itself is not owned by any
// account.
type Tier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quota       int64  `json:"quota"`
}

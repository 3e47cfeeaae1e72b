package models

// Owner is an EV owner, keyed by national identity card number.
type Owner struct {
	NIC       string `db:"nic" json:"nic"`
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
	Email     string `db:"email" json:"email"`
	Phone     string `db:"phone" json:"phone"`
	IsActive  bool   `db:"is_active" json:"isActive"`
}

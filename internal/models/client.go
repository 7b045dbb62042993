package models

// Client is a customer the firm invoices.
type Client struct {
	Base    `bson:",inline"`
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email,omitempty" json:"email,omitempty"`
	Contact string `bson:"contact,omitempty" json:"contact,omitempty"`
	Address string `bson:"address,omitempty" json:"address,omitempty"`
	KraPin  string `bson:"kra_pin,omitempty" json:"kraPin,omitempty"`
	Active  bool   `bson:"active" json:"active"`
	Deleted bool   `bson:"deleted" json:"-"`
	Audit   `bson:",inline"`
}

// ServiceItem is a billable catalog entry selectable on invoice lines.
type ServiceItem struct {
	Base        `bson:",inline"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	// Default unit rate, decimal string in KES.
	Rate    string `bson:"rate" json:"rate"`
	Active  bool   `bson:"active" json:"active"`
	Deleted bool   `bson:"deleted" json:"-"`
	Audit   `bson:",inline"`
}

// Project groups expenses for reporting.
type Project struct {
	Base        `bson:",inline"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Active      bool   `bson:"active" json:"active"`
	Deleted     bool   `bson:"deleted" json:"-"`
	Audit       `bson:",inline"`
}

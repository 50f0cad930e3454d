// Package entities holds the Accelo records read through the query cache.
package entities

import (
	"time"

	"github.com/goliatone/go-accelo-cache/cache"
)

var (
	_ cache.Entity = (*Company)(nil)
	_ cache.Entity = (*Contract)(nil)
	_ cache.Entity = (*ContractPeriod)(nil)
)

// Company is an Accelo company.
type Company struct {
	ID           int    `json:"id,string"`
	Name         string `json:"name"`
	Website      string `json:"website,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Status       string `json:"status,omitempty"`
	DateCreated  Date   `json:"date_created"`
	DateModified Date   `json:"date_modified"`
}

// EntityID implements cache.Entity.
func (c *Company) EntityID() int { return c.ID }

// Contract is an Accelo contract. CompanyID is the id of the object the
// contract is held against when that object is a company.
type Contract struct {
	ID                int     `json:"id,string"`
	Title             string  `json:"title"`
	Standing          string  `json:"standing,omitempty"`
	AgainstType       string  `json:"against_type,omitempty"`
	AgainstID         int     `json:"against_id,string,omitempty"`
	Value             float64 `json:"value,string,omitempty"`
	DateCreated       Date    `json:"date_created"`
	DateStarted       Date    `json:"date_started"`
	DateExpires       Date    `json:"date_expires"`
	DatePeriodExpires Date    `json:"date_period_expires"`
}

// EntityID implements cache.Entity.
func (c *Contract) EntityID() int { return c.ID }

// CompanyID returns the owning company id, or 0 if the contract is not
// held against a company.
func (c *Contract) CompanyID() int {
	if c.AgainstType != "company" {
		return 0
	}
	return c.AgainstID
}

// ContractPeriod is one billing period of a contract.
type ContractPeriod struct {
	ID            int    `json:"id,string"`
	ContractID    int    `json:"contract_id,string"`
	Standing      string `json:"standing,omitempty"`
	BudgetType    string `json:"budget_type,omitempty"`
	AllowanceType string `json:"allowance_type,omitempty"`
	DateCommenced Date   `json:"date_commenced"`
	DateExpires   Date   `json:"date_expires"`
	DateClosed    Date   `json:"date_closed"`
}

// EntityID implements cache.Entity.
func (p *ContractPeriod) EntityID() int { return p.ID }

// Active reports whether the period has commenced and not expired at t.
func (p *ContractPeriod) Active(t time.Time) bool {
	return Covers(p.DateCommenced, p.DateExpires, t)
}

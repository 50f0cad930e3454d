package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/goliatone/go-accelo-cache/entities"
	"github.com/goliatone/go-accelo-cache/filter"
	"golang.org/x/sync/errgroup"
)

// noExpiry is how the API reports a contract without an expiry date.
var noExpiry = time.Unix(0, 0)

// CompanyDao reads companies.
type CompanyDao = Dao[*entities.Company]

// NewCompanyDao creates a CompanyDao over q.
func NewCompanyDao(q Querier) (*CompanyDao, error) {
	return New[*entities.Company](q, "companies")
}

// ContractDao reads contracts.
type ContractDao struct {
	*Dao[*entities.Contract]
	periods *ContractPeriodDao
}

// NewContractDao creates a ContractDao over q.
func NewContractDao(q Querier) (*ContractDao, error) {
	base, err := New[*entities.Contract](q, "contracts")
	if err != nil {
		return nil, err
	}
	periods, err := NewContractPeriodDao(q)
	if err != nil {
		return nil, err
	}
	return &ContractDao{Dao: base, periods: periods}, nil
}

// CompanyFilter selects the contracts held against a company.
func CompanyFilter(companyID int) filter.Filter {
	return filter.Where(filter.Compound("against", filter.Eq("company", companyID)))
}

// GetByCompany returns the contracts held against companyID.
func (d *ContractDao) GetByCompany(ctx context.Context, companyID int) ([]*entities.Contract, error) {
	return d.GetAll(ctx, CompanyFilter(companyID))
}

// GetActiveContracts returns the contracts started before now that either
// expire after now or have no expiry date. The two queries run concurrently.
func (d *ContractDao) GetActiveContracts(ctx context.Context, now time.Time) ([]*entities.Contract, error) {
	var expiring, open []*entities.Contract

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expiring, err = d.GetAll(gctx, filter.Where(
			filter.Before("date_started", now),
			filter.After("date_expires", now),
		))
		if err != nil {
			return fmt.Errorf("active contracts with expiry: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		open, err = d.GetAll(gctx, filter.Where(
			filter.Before("date_started", now),
			filter.Eq("date_expires", noExpiry),
		))
		if err != nil {
			return fmt.Errorf("active contracts without expiry: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(expiring)+len(open))
	active := make([]*entities.Contract, 0, len(expiring)+len(open))
	for _, c := range append(expiring, open...) {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		active = append(active, c)
	}
	return active, nil
}

// GetActiveContract returns the first contract of companyID with a period
// covering now, or ErrNotFound.
func (d *ContractDao) GetActiveContract(ctx context.Context, companyID int, now time.Time) (*entities.Contract, error) {
	contracts, err := d.GetByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	for _, c := range contracts {
		periods, err := d.periods.GetByContract(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range periods {
			if p.Active(now) {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no active contract for company %d", ErrNotFound, companyID)
}

// Periods returns the ContractPeriodDao used by the contract lookups.
func (d *ContractDao) Periods() *ContractPeriodDao {
	return d.periods
}

// ContractPeriodDao reads contract periods.
type ContractPeriodDao struct {
	*Dao[*entities.ContractPeriod]
}

// NewContractPeriodDao creates a ContractPeriodDao over q.
func NewContractPeriodDao(q Querier) (*ContractPeriodDao, error) {
	base, err := New[*entities.ContractPeriod](q, "contracts/periods")
	if err != nil {
		return nil, err
	}
	return &ContractPeriodDao{Dao: base}, nil
}

// GetByContract returns the periods of contractID.
func (d *ContractPeriodDao) GetByContract(ctx context.Context, contractID int) ([]*entities.ContractPeriod, error) {
	return d.queryIn(ctx, fmt.Sprintf("contracts/%d/periods", contractID), filter.New(), cache.AllFields)
}

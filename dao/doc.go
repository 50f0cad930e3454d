// Package dao provides typed data access objects over the query cache.
//
// # Overview
//
// A Dao[T] turns filters into cache.QueryKey values for one collection and
// asks a querycache.Coordinator for the rows, so every read goes through
// the cache:
//
//	contracts, err := dao.NewContractDao(coord)
//	list, err := contracts.GetByCompany(ctx, 42)   // miss, fetched
//	c, err := contracts.GetByID(ctx, list[0].ID)   // hit, back-filled
//
// # Refreshing
//
// GetAllRefreshed bypasses the cache for one query. WithRefresh does the
// same for every read made with the returned context:
//
//	ctx = dao.WithRefresh(ctx)
//	list, err := contracts.GetByCompany(ctx, 42)   // fetched again
//
// # Flushing
//
// Flush and FlushAll drop the by-id rows of entities. List queries holding
// those entities keep serving them until they expire or are refreshed.
package dao

// Package filter builds the `_filters` expressions understood by the
// Accelo REST API.
//
//	f := filter.Where(filter.Compound("against", filter.Eq("company", 42)))
//	f.String() // against(company(42))
//
//	f = filter.Where(
//		filter.Before("date_started", now),
//		filter.After("date_expires", now),
//	)
//	f.String() // date_started_before(1700000000),date_expires_after(1700000000)
//
// A Filter is an immutable value. RefreshCache returns a copy flagged to
// bypass the query cache; the flag is not part of String, so the refreshed
// query replaces the plain one.
package filter

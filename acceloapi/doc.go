// Package acceloapi reads collections from the Accelo REST API.
//
// Client implements querycache.Fetcher: it turns a cache.QueryKey into
//
//	GET {base}/api/v0/{collection}?_filters=...&_fields=...&_limit=N&_page=P
//
// and walks the pages until the server returns a short one. Every page is
// wrapped in the API envelope
//
//	{"meta": {"status": "ok", "message": "..."}, "response": [ ... ]}
//
// and each element of response is decoded into a new value of the key's
// row type. Authentication is left to the supplied *http.Client.
package acceloapi

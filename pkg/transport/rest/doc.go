// Package rest implements the HTTP/JSON pipe transport.
//
// A Transport maps pipe operations onto the collection endpoint returned by
// collection.Config.URL:
//
//	read-all     GET    {url}
//	read-one     GET    {url}/{id}
//	read-params  GET    {url}?k=v
//	save         POST   {url}        (record without identity)
//	             PUT    {url}/{id}   (record with identity)
//	remove       DELETE {url}/{id}
//
// Response bodies are parsed as JSON. When the collection configures a
// response root (a JSONPath such as "$.data"), the payload is extracted from
// the envelope at that path.
//
// Usage:
//
//	cfg := collection.MustNew("users", collection.WithBaseURL("https://api.example.com"))
//	p := pipe.New(cfg, rest.New(rest.WithToken(token)))
package rest

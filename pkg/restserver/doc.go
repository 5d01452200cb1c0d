// Package restserver exposes local record stores over HTTP using the same
// conventions the rest transport speaks:
//
//	GET    /                list collections and their sizes
//	GET    /{name}          all records; ?k=v narrows by field equality,
//	                        ?filter=<expr> by a boolean expression
//	POST   /{name}          save a record, 201 with the stored record
//	GET    /{name}/{id}     one record, 404 when absent
//	PUT    /{name}/{id}     save a record under id
//	DELETE /{name}/{id}     remove a record, 404 when absent
//
// Errors are JSON bodies of the form {"error", "message", "hint"}.
package restserver

// Package template substitutes request data into response bodies.
//
// Expressions are written as {{expression}}:
//
//   - {{path[N]}} - the Nth non-empty path segment, so /user/123 gives
//     path[0]="user" and path[1]="123"
//   - {{body.field}}, {{body.items[0].id}}, {{body[2]}} - a value from the
//     JSON request body
//   - {{request.method}}, {{request.path}}
//   - {{request.query.NAME}}, {{request.header.NAME}}
//   - {{uuid}}, {{now}}, {{timestamp}}
//
// When a JSON string consists of a single expression the string is replaced
// by a typed value: body lookups keep their JSON type and everything else is
// parsed as a bool or number when it looks like one. Appending :string, as
// in {{path[1]:string}}, keeps the value a string. Expressions embedded in
// longer strings are substituted as text. Missing values render as null.
// Unknown expressions are left untouched.
package template

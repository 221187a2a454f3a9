// Package script runs user supplied Lua response scripts in an isolated
// interpreter.
//
// Every call to Runtime.Run gets a fresh lua.LState with only the base,
// table, string and math libraries loaded. Functions that reach the
// filesystem or load code are removed. The script sees the incoming request
// as the global table "request" and must return a table:
//
//	return {
//	  status  = 201,
//	  headers = { ["X-From-Lua"] = "yes" },
//	  body    = { msg = "hello", method = request.method },
//	}
//
// A string body is served as text. Tables, numbers and booleans are encoded
// as JSON.
package script

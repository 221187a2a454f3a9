// Package mimictest runs an in-process mimic server for Go tests.
//
// It lets a test declare mocked endpoints with a fluent builder and then
// assert on the traffic the code under test sent:
//
//	func TestClient(t *testing.T) {
//	    srv := mimictest.New(t)
//	    srv.Mock("GET", "/users/42").
//	        WithJSON(map[string]any{"id": 42}).
//	        Reply()
//	    srv.Mock("POST", "/orders").
//	        WithScript(`return { status = 201, body = { method = request.method } }`).
//	        Reply()
//	    srv.Mock("GET", "/flaky").
//	        WithStatus(200).
//	        WithJitter(25, 503, "upstream unavailable").
//	        Reply()
//
//	    client := NewClient(srv.Start())
//	    // ... exercise client ...
//
//	    srv.AssertCalledTimes(t, "GET", "/users/42", 1)
//	    reqs := srv.Requests()
//	    reqs[0].AssertJSONField(t, "quantity", float64(2))
//	}
//
// The server uses in-memory storage and is stopped automatically when the
// test finishes. Mocks may be added before or after Start.
package mimictest

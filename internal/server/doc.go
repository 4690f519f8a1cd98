// Package server hosts the Fiber HTTP service and the request middleware chain
// shared by the interception handler and the /-/ diagnostics routes. It also
// owns the upstream http.Client used to reach the origin, so keep exports narrow
// and accept explicit dependencies.
package server

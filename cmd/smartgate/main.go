// Smartgate is a reverse-proxy API gateway.
//
// It sits in front of a set of backend projects and, for every inbound
// request, performs project resolution by URL path prefix, optional CSRF
// validation, authentication (signed bearer token or server-held
// session), distributed rate limiting, identity propagation, and
// fault-isolated forwarding through a per-project circuit breaker.
//
// Usage:
//
//	# Start the gateway with the default configuration file
//	smartgate run
//
//	# Start with a custom configuration file
//	smartgate run --config /etc/smartgate/config.yaml
//
//	# Validate a configuration file without starting
//	smartgate validate
//
//	# Show version information
//	smartgate version
package main

func main() {
	Execute()
}

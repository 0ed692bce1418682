package ratelimit

import "strings"

// unlimited marks an endpoint that is never throttled.
var unlimited = EndpointConfig{}

// MatchEndpoint resolves the budget for a path and method. Exact path matches
// win over prefix matches; a prefix rule is any config whose Path ends in "/"
// (so "/jobs/" covers "/jobs/{id}" and deeper). Health checks are never
// throttled. Returns nil when only the default budget applies.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &unlimited
	}

	var prefix *EndpointConfig
	for i := range configs {
		ec := &configs[i]
		if ec.Method != method {
			continue
		}
		if ec.Path == path {
			return ec
		}
		if prefix == nil && strings.HasSuffix(ec.Path, "/") && strings.HasPrefix(path, ec.Path) {
			prefix = ec
		}
	}
	return prefix
}

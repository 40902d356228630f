// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
	SecurityAdmin                       // Access token with ADMIN role required
)

// EndpointSecurityConfig maps "METHOD route-template" to the required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Public
	"GET /health":  SecurityPublic,
	"GET /metrics": SecurityPublic,

	// Requests
	"POST /requests":        SecurityAccess,
	"GET /requests":         SecurityAccess,
	"GET /requests/{id}":    SecurityAccess,
	"PUT /requests/{id}":    SecurityAdmin,
	"DELETE /requests/{id}": SecurityAccess,

	// Assets
	"POST /assets":             SecurityAdmin,
	"GET /assets":              SecurityAccess,
	"GET /assets/{id}":         SecurityAccess,
	"PUT /assets/{id}":         SecurityAdmin,
	"DELETE /assets/{id}":      SecurityAdmin,
	"PUT /assets/assign/{id}":  SecurityAdmin,
	"PUT /assets/release/{id}": SecurityAdmin,
	"PUT /assets/state/{id}":   SecurityAdmin,
	"PUT /assets/return/{id}":  SecurityAccess,

	// Events
	"POST /events":        SecurityAccess,
	"GET /events":         SecurityAccess,
	"GET /events/{id}":    SecurityAccess,
	"PUT /events/{id}":    SecurityAccess,
	"DELETE /events/{id}": SecurityAccess,

	// Notifications
	"GET /notifications/{userId}":  SecurityAccess,
	"PUT /notifications/read/{id}": SecurityAccess,
	"PUT /notifications/read":      SecurityAccess,
	"DELETE /notifications/{id}":   SecurityAccess,

	// Realtime
	"GET /ws": SecurityAccess,
}

// GetSecurityLevel returns the security level for a given method and route
func GetSecurityLevel(method, route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method+" "+route]; exists {
		return level
	}
	// Default to access for unknown endpoints
	return SecurityAccess
}

package auth

// Scopes understood by the driving hours API.
const (
	ScopeHoursRead  = "hours:read"
	ScopeHoursWrite = "hours:write"
)

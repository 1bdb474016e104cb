package routes

// Version is the API version segment used in routing.
const Version = "v0"

// Base returns the versioned API base path (e.g., "/api/v0").
func Base() string {
	return "/api/" + Version
}

func Chat() string      { return Base() + "/chat" }
func Exercises() string { return Base() + "/exercises" }
func Programs() string  { return Base() + "/programs" }
func Debug() string     { return Base() + "/debug" }

// HealthVersioned returns the versioned health path (e.g., "/api/v0/health").
func HealthVersioned() string {
	return Base() + "/health"
}

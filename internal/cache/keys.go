package cache

import "fmt"

// KeyTraffic identifies an aggregated view for one dataset version and filter.
func KeyTraffic(version, filter string) string {
	return fmt.Sprintf("traffic:%s:%s", version, filter)
}

// KeyTrafficPattern matches every cached view of a dataset version.
func KeyTrafficPattern(version string) string {
	return fmt.Sprintf("traffic:%s:*", version)
}

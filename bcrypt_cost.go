//go:build !race

package auth

// passwordHashCost keeps verification well under 100ms on current hardware.
func passwordHashCost() int {
	return 12
}

//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// passwordHashCost drops to the library default under -race, where hashing
// at full cost makes the suite exceed its timeouts.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}

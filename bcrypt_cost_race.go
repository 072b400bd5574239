//go:build race

package tours

import "golang.org/x/crypto/bcrypt"

// race builds hash at the library default so handler tests stay under timeouts
func passwordHashCost() int {
	return bcrypt.DefaultCost
}

//go:build race

package users

import "golang.org/x/crypto/bcrypt"

// PasswordCost is lowered for race-enabled builds so suites fit their timeouts.
const PasswordCost = bcrypt.MinCost

func passwordHashCost() int {
	return PasswordCost
}

//go:build !race

package users

// PasswordCost is the bcrypt work factor for stored passwords.
const PasswordCost = 10

func passwordHashCost() int {
	return PasswordCost
}

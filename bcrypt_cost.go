//go:build !race

package tours

func passwordHashCost() int {
	return 12
}

package domain

// Shuffler is the randomness source of the role engine.
// *math/rand.Rand satisfies it.
type Shuffler interface {
	Intn(n int) int
}

// BalancedRolePool returns n roles cycling through AssignableRoles, so that
// every hat count differs from any other by at most one.
func BalancedRolePool(n int) []Role {
	if n <= 0 {
		return nil
	}
	assignable := AssignableRoles()
	pool := make([]Role, n)
	for i := range pool {
		pool[i] = assignable[i%len(assignable)]
	}
	return pool
}

// Shuffle returns a Fisher-Yates permutation of items. The input is not modified.
func Shuffle[T any](items []T, rng Shuffler) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// RoleCounts counts how many times each role appears.
func RoleCounts(roles []Role) map[Role]int {
	counts := make(map[Role]int, len(roles))
	for _, r := range roles {
		counts[r]++
	}
	return counts
}

package domain

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"tink/errors"
)

func TestParseRole_AcceptsColorsAndHatNames(t *testing.T) {
	req := require.New(t)

	r, err := ParseRole("Yellow")
	req.NoError(err)
	req.Equal(RoleBenefits, r)

	r, err = ParseRole("creativity")
	req.NoError(err)
	req.Equal(RoleCreativity, r)

	r, err = ParseRole("")
	req.NoError(err)
	req.Equal(RoleNone, r)

	_, err = ParseRole("purple")
	req.ErrorIs(err, errors.ErrUnknownRole)
}

func TestRole_OnlyProcessIsReserved(t *testing.T) {
	req := require.New(t)
	req.True(RoleProcess.IsReserved())
	for _, r := range AssignableRoles() {
		req.False(r.IsReserved(), r.String())
	}
	req.NotContains(AssignableRoles(), FacilitatorRole)
}

func TestRole_JSONMapKeysUseColors(t *testing.T) {
	req := require.New(t)
	in := map[Role][]string{RoleBenefits: {"cheap"}, RoleCaution: {"risky"}}

	raw, err := json.Marshal(in)
	req.NoError(err)
	req.JSONEq(`{"yellow":["cheap"],"black":["risky"]}`, string(raw))

	var out map[Role][]string
	req.NoError(json.Unmarshal(raw, &out))
	req.Equal(in, out)
}

func TestBalancedRolePool_TwentyParticipants(t *testing.T) {
	req := require.New(t)
	pool := BalancedRolePool(20)
	req.Len(pool, 20)

	counts := RoleCounts(pool)
	req.Len(counts, 5)
	for _, r := range AssignableRoles() {
		req.Equal(4, counts[r], r.String())
	}
}

func TestBalancedRolePool_CountsDifferByAtMostOne(t *testing.T) {
	req := require.New(t)
	for n := 1; n <= 23; n++ {
		counts := RoleCounts(BalancedRolePool(n))
		req.NotContains(counts, RoleProcess)

		lowest, highest := n, 0
		for _, r := range AssignableRoles() {
			lowest = min(lowest, counts[r])
			highest = max(highest, counts[r])
		}
		req.LessOrEqual(highest-lowest, 1, "n=%d", n)
	}
	req.Empty(BalancedRolePool(0))
}

func TestShuffle_KeepsMultisetAndInput(t *testing.T) {
	req := require.New(t)
	pool := BalancedRolePool(12)
	original := append([]Role(nil), pool...)

	shuffled := Shuffle(pool, rand.New(rand.NewSource(42)))

	req.Equal(original, pool)
	req.ElementsMatch(pool, shuffled)
	req.Equal(RoleCounts(pool), RoleCounts(shuffled))
}

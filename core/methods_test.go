package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"signescrow/core/ledger"
	"signescrow/core/types"
)

func TestParseArgsOptionalsStayTyped(t *testing.T) {
	m, err := DefaultMethods().Lookup("oracle", "signature_response")
	require.NoError(t, err)

	args, err := m.ParseArgs([]string{"3", "false", ""})
	require.NoError(t, err)
	require.Equal(t, uint32(3), args[0])
	require.Equal(t, false, args[1])
	require.Equal(t, (*string)(nil), args[2])

	canon, err := ledger.EncodeArgs(args)
	require.NoError(t, err)
	want, err := ledger.EncodeArgs([]any{uint32(3), false, (*string)(nil)})
	require.NoError(t, err)
	require.Equal(t, want, canon)

	args, err = m.ParseArgs([]string{"3", "true", "abc"})
	require.NoError(t, err)
	require.Equal(t, "abc", *args[2].(*string))

	// Document hashes are opaque: "None" and surrounding spaces are kept.
	args, err = m.ParseArgs([]string{" 3 ", "true", "None"})
	require.NoError(t, err)
	require.Equal(t, uint32(3), args[0])
	require.Equal(t, "None", *args[2].(*string))
	args, err = m.ParseArgs([]string{"3", "true", " h "})
	require.NoError(t, err)
	require.Equal(t, " h ", *args[2].(*string))
}

func TestParseArgsKeepsIdentifiersVerbatim(t *testing.T) {
	m, err := DefaultMethods().Lookup("escrow", "get_proposal")
	require.NoError(t, err)
	for _, id := range []string{" P1", "P1 ", "none", ""} {
		args, err := m.ParseArgs([]string{id})
		require.NoError(t, err)
		require.Equal(t, id, args[0])
	}
}

func TestParseArgsRejectsBadInput(t *testing.T) {
	methods := DefaultMethods()
	transfer, err := methods.Lookup("asset", "transfer")
	require.NoError(t, err)
	p := types.ContractPrincipal("someone").String()

	_, err = transfer.ParseArgs([]string{p, p})
	require.ErrorContains(t, err, "expected 3 arguments")
	_, err = transfer.ParseArgs([]string{p, "not-an-address", "1"})
	require.ErrorContains(t, err, "to")
	_, err = transfer.ParseArgs([]string{p, p, "1.5"})
	require.ErrorContains(t, err, "amount")

	args, err := transfer.ParseArgs([]string{p, p, "170141183460469231731687303715884105727"})
	require.NoError(t, err)
	require.Equal(t, 0, args[2].(*big.Int).Cmp(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))))

	approve, err := methods.Lookup("proofnote", "approve")
	require.NoError(t, err)
	args, err = approve.ParseArgs([]string{p, "none", "0", "100"})
	require.NoError(t, err)
	require.Equal(t, (*types.Principal)(nil), args[1])
}

func TestMethodTableCoversEveryContract(t *testing.T) {
	seen := map[string]int{}
	for _, m := range DefaultMethods().List() {
		seen[m.Contract]++
		require.NotNil(t, m.invoke, m.Name())
	}
	require.Equal(t, 5, seen["asset"])
	require.Equal(t, 15, seen["proofnote"])
	require.Equal(t, 7, seen["oracle"])
	require.Equal(t, 8, seen["escrow"])

	_, err := DefaultMethods().Lookup("escrow", "cancel")
	require.ErrorIs(t, err, ErrUnknownMethod)
}

package proofnote

import (
	"signescrow/core/ledger"
	"signescrow/core/types"
)

// The enumeration auxiliaries keep two lists with their reverse indices: the
// global mint-ordered list, which only ever grows, and one list per owner.

func (n *Notes) globalTokens(env *ledger.Env) ([]uint32, error) {
	var list []uint32
	if _, err := env.Get(ownedTokenIndicesKey(), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (n *Notes) appendGlobal(env *ledger.Env, id uint32) error {
	list, err := n.globalTokens(env)
	if err != nil {
		return err
	}
	list = append(list, id)
	if err := n.setPersistent(env, ownedTokenIndicesKey(), list); err != nil {
		return err
	}
	return n.setPersistent(env, tokenIDToIndexKey(id), uint32(len(list)-1))
}

func (n *Notes) ownerTokens(env *ledger.Env, owner types.Principal) ([]uint32, error) {
	var list []uint32
	if _, err := env.Get(ownerTokensKey(owner), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (n *Notes) ownerTokenIndex(env *ledger.Env, owner types.Principal, id uint32) (uint32, bool, error) {
	var idx uint32
	found, err := env.Get(ownerIndexKey(owner, id), &idx)
	return idx, found, err
}

func (n *Notes) appendOwner(env *ledger.Env, owner types.Principal, id uint32) error {
	list, err := n.ownerTokens(env, owner)
	if err != nil {
		return err
	}
	list = append(list, id)
	if err := n.setPersistent(env, ownerTokensKey(owner), list); err != nil {
		return err
	}
	if err := n.setPersistent(env, ownerIndexKey(owner, id), uint32(len(list)-1)); err != nil {
		return err
	}
	return n.adjustBalance(env, owner, 1)
}

// removeOwner drops id from owner's list preserving the order of the remaining
// tokens and reindexes every token that shifted.
func (n *Notes) removeOwner(env *ledger.Env, owner types.Principal, id uint32) error {
	list, err := n.ownerTokens(env, owner)
	if err != nil {
		return err
	}
	idx, found, err := n.ownerTokenIndex(env, owner, id)
	if err != nil {
		return err
	}
	if !found || int(idx) >= len(list) || list[idx] != id {
		return ErrNotOwner
	}
	list = append(list[:idx], list[idx+1:]...)
	if err := env.Remove(ownerIndexKey(owner, id)); err != nil {
		return err
	}
	for j := int(idx); j < len(list); j++ {
		if err := n.setPersistent(env, ownerIndexKey(owner, list[j]), uint32(j)); err != nil {
			return err
		}
	}
	if len(list) == 0 {
		if err := env.Remove(ownerTokensKey(owner)); err != nil {
			return err
		}
	} else if err := n.setPersistent(env, ownerTokensKey(owner), list); err != nil {
		return err
	}
	return n.adjustBalance(env, owner, -1)
}

func (n *Notes) adjustBalance(env *ledger.Env, owner types.Principal, delta int) error {
	balance, err := n.balance(env, owner)
	if err != nil {
		return err
	}
	next := int64(balance) + int64(delta)
	if next < 0 {
		next = 0
	}
	if next == 0 {
		return env.Remove(balanceKey(owner))
	}
	return n.setPersistent(env, balanceKey(owner), uint32(next))
}

func (n *Notes) balance(env *ledger.Env, owner types.Principal) (uint32, error) {
	var balance uint32
	if _, err := env.Get(balanceKey(owner), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"signescrow/core/types"
	"signescrow/sdk/client"
)

// authList collects --auth values of the form CONTRACT:FUNCTION:ARG,ARG.
type authList []string

func (a *authList) String() string { return strings.Join(*a, " ") }

func (a *authList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

func runInvoke(g globals, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("invoke", stderr)
	var (
		keys  keyFlags
		auths authList
	)
	keys.register(fs)
	fs.Var(&auths, "auth", "nested call the signing key authorizes, CONTRACT:FUNCTION:ARG,ARG (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("invoke requires CONTRACT FUNCTION [ARGS...]")
	}
	key, err := keys.load()
	if err != nil {
		return err
	}
	c, err := g.client()
	if err != nil {
		return err
	}
	ctx, cancel := g.context()
	defer cancel()

	resolve, err := contractResolver(ctx, c)
	if err != nil {
		return err
	}
	contract, err := resolve(rest[0])
	if err != nil {
		return err
	}
	cosigners := make([]client.Cosigner, 0, len(auths))
	for _, raw := range auths {
		call, err := parseAuth(raw, resolve)
		if err != nil {
			return err
		}
		cosigners = append(cosigners, client.Cosigner{Key: key, Call: call})
	}
	receipt, err := c.NewSigner(key).Submit(ctx, client.NewCall(contract, rest[1], rest[2:]...), cosigners...)
	if err != nil {
		return err
	}
	return printJSON(stdout, receipt)
}

func contractResolver(ctx context.Context, c *client.Client) (func(string) (types.Principal, error), error) {
	info, err := c.Info(ctx)
	if err != nil {
		return nil, err
	}
	return func(name string) (types.Principal, error) {
		if p, ok := info.Contracts.ByName(name); ok {
			return p, nil
		}
		p, err := types.ParsePrincipal(name)
		if err != nil {
			return types.Principal{}, fmt.Errorf("unknown contract %q", name)
		}
		return p, nil
	}, nil
}

func parseAuth(raw string, resolve func(string) (types.Principal, error)) (types.Call, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[1] == "" {
		return types.Call{}, fmt.Errorf("invalid --auth %q: want CONTRACT:FUNCTION:ARGS", raw)
	}
	contract, err := resolve(parts[0])
	if err != nil {
		return types.Call{}, err
	}
	var args []string
	if len(parts) == 3 && parts[2] != "" {
		args = strings.Split(parts[2], ",")
	}
	return client.NewCall(contract, parts[1], args...), nil
}

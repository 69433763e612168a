package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"signescrow/core/events"
	"signescrow/core/genesis"
	"signescrow/core/ledger"
	"signescrow/core/types"
	"signescrow/storage"
)

var (
	// ErrWrongNetwork is returned for envelopes signed for another network.
	ErrWrongNetwork = errors.New("core: envelope network mismatch")
	// ErrBadSignature wraps envelope signature failures.
	ErrBadSignature = errors.New("core: invalid envelope signature")
	// ErrQueryOnly is returned when a read-only function is submitted as a transaction.
	ErrQueryOnly = errors.New("core: function is read-only")
	// ErrNotQuery is returned when a state-changing function is queried.
	ErrNotQuery = errors.New("core: function writes state")
	// ErrUnknownContract is returned for calls to undeployed contracts.
	ErrUnknownContract = errors.New("core: unknown contract")
)

// Options configure a Node.
type Options struct {
	Network   string
	Ledger    ledger.Config
	Contracts genesis.ContractConfig
	// Genesis is applied once, on the first start against an empty database.
	Genesis       *genesis.Spec
	CloseInterval time.Duration
	Logger        *slog.Logger
	// Emitters receive every committed event in addition to the node hub.
	Emitters []events.Emitter
}

// Info describes the node state.
type Info struct {
	Network   string            `json:"network"`
	Sequence  uint32            `json:"sequence"`
	StateRoot common.Hash       `json:"stateRoot"`
	Contracts genesis.Contracts `json:"contracts"`
}

// Node wires storage, the ledger and the deployed contracts together.
type Node struct {
	db        storage.Database
	ledger    *ledger.Ledger
	contracts *genesis.Contracts
	names     map[types.Principal]string
	methods   *Methods
	hub       *events.Hub
	network   string
	interval  time.Duration
	logger    *slog.Logger

	closeOnce sync.Once
}

// New opens the ledger on db, deploys the contracts and applies genesis when
// the ledger has never been initialized.
func New(ctx context.Context, db storage.Database, opts Options) (*Node, error) {
	if strings.TrimSpace(opts.Network) == "" {
		return nil, fmt.Errorf("core: network name required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	l, err := ledger.Open(db, opts.Ledger)
	if err != nil {
		return nil, err
	}
	l.SetLogger(logger)
	hub := events.NewHub()
	l.SetEmitter(append(events.Multi{hub}, opts.Emitters...))

	contracts, err := genesis.Deploy(l, opts.Contracts)
	if err != nil {
		return nil, err
	}
	initialized, err := genesis.Initialized(ctx, l, contracts)
	if err != nil {
		return nil, fmt.Errorf("core: inspect genesis: %w", err)
	}
	if !initialized {
		if opts.Genesis == nil {
			return nil, fmt.Errorf("core: empty ledger and no genesis spec")
		}
		if err := genesis.Apply(ctx, l, contracts, opts.Genesis); err != nil {
			return nil, err
		}
		logger.Info("genesis applied",
			slog.String("network", opts.Network),
			slog.String("escrow", contracts.Escrow.String()))
	}

	n := &Node{
		db:        db,
		ledger:    l,
		contracts: contracts,
		names: map[types.Principal]string{
			contracts.Asset:     genesis.NameAsset,
			contracts.ProofNote: genesis.NameProofNote,
			contracts.Oracle:    genesis.NameOracle,
			contracts.Escrow:    genesis.NameEscrow,
		},
		methods:  DefaultMethods(),
		hub:      hub,
		network:  opts.Network,
		interval: opts.CloseInterval,
		logger:   logger,
	}
	return n, nil
}

// Ledger exposes the underlying ledger.
func (n *Node) Ledger() *ledger.Ledger { return n.ledger }

// Contracts returns the deployed contract principals.
func (n *Node) Contracts() genesis.Contracts { return *n.contracts }

// Methods returns the dispatch table.
func (n *Node) Methods() *Methods { return n.methods }

// Network returns the network name envelopes must carry.
func (n *Node) Network() string { return n.network }

// ResolveContract accepts a contract name or principal.
func (n *Node) ResolveContract(s string) (types.Principal, error) {
	s = strings.TrimSpace(s)
	for p, name := range n.names {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	p, err := types.ParsePrincipal(s)
	if err != nil {
		return types.Principal{}, fmt.Errorf("%w: %s", ErrUnknownContract, s)
	}
	if _, ok := n.names[p]; !ok {
		return types.Principal{}, fmt.Errorf("%w: %s", ErrUnknownContract, s)
	}
	return p, nil
}

func (n *Node) method(contract types.Principal, function string) (*Method, error) {
	name, ok := n.names[contract]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, contract)
	}
	return n.methods.Lookup(name, function)
}

// Submit verifies env and executes its call as one transaction.
func (n *Node) Submit(ctx context.Context, env *types.Envelope) (*ledger.Receipt, error) {
	if env == nil {
		return nil, fmt.Errorf("core: nil envelope")
	}
	if env.Network != n.network {
		return nil, fmt.Errorf("%w: got %q", ErrWrongNetwork, env.Network)
	}
	if env.Nonce == 0 {
		return nil, fmt.Errorf("%w: nonce must be positive", ledger.ErrBadNonce)
	}
	if err := env.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	method, err := n.method(env.Call.Contract, env.Call.Function)
	if err != nil {
		return nil, err
	}
	if method.Query {
		return nil, fmt.Errorf("%w: %s", ErrQueryOnly, method.Name())
	}
	args, err := method.ParseArgs(env.Call.Args)
	if err != nil {
		return nil, err
	}
	auths, err := n.authorizations(env.Auth)
	if err != nil {
		return nil, err
	}
	hash, err := env.Hash()
	if err != nil {
		return nil, err
	}

	receipt, err := n.ledger.Execute(ctx, ledger.TxOptions{
		Source: env.Source,
		Auths:  auths,
		Nonce:  env.Nonce,
		Hash:   "0x" + hex.EncodeToString(hash),
	}, func(e *ledger.Env) error {
		_, err := method.invoke(e, n.contracts, args)
		return err
	})
	if err != nil {
		n.logger.DebugContext(ctx, "envelope rejected",
			slog.String("method", method.Name()),
			slog.String("source", env.Source.String()),
			slog.Any("error", err))
		return nil, err
	}
	return receipt, nil
}

func (n *Node) authorizations(entries []types.AuthEntry) ([]ledger.Authorization, error) {
	out := make([]ledger.Authorization, 0, len(entries))
	for i, entry := range entries {
		method, err := n.method(entry.Call.Contract, entry.Call.Function)
		if err != nil {
			return nil, fmt.Errorf("auth[%d]: %w", i, err)
		}
		args, err := method.ParseArgs(entry.Call.Args)
		if err != nil {
			return nil, fmt.Errorf("auth[%d]: %w", i, err)
		}
		out = append(out, ledger.Authorization{
			Address: entry.Address,
			Invocation: ledger.Invocation{
				Contract: entry.Call.Contract,
				Function: entry.Call.Function,
				Args:     args,
			},
		})
	}
	return out, nil
}

// Query runs a read-only function against committed state.
func (n *Node) Query(ctx context.Context, contract types.Principal, function string, rawArgs []string) (any, error) {
	method, err := n.method(contract, function)
	if err != nil {
		return nil, err
	}
	if !method.Query {
		return nil, fmt.Errorf("%w: %s", ErrNotQuery, method.Name())
	}
	args, err := method.ParseArgs(rawArgs)
	if err != nil {
		return nil, err
	}
	var out any
	err = n.ledger.View(ctx, func(e *ledger.Env) error {
		v, err := method.invoke(e, n.contracts, args)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Info reports the network, sequence, state root and contracts.
func (n *Node) Info() Info {
	return Info{
		Network:   n.network,
		Sequence:  n.ledger.Sequence(),
		StateRoot: n.ledger.StateRoot(),
		Contracts: *n.contracts,
	}
}

// Nonce returns the last committed nonce of p.
func (n *Node) Nonce(p types.Principal) (uint64, error) {
	return n.ledger.Nonce(p)
}

// Subscribe streams committed events until ctx is done.
func (n *Node) Subscribe(ctx context.Context, buffer int) <-chan events.Event {
	return n.hub.Subscribe(ctx, buffer)
}

// Hub exposes the event fan-out.
func (n *Node) Hub() *events.Hub { return n.hub }

// Run closes a ledger every interval until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	if n.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			seq, err := n.ledger.Close()
			if err != nil {
				n.logger.Error("ledger close failed", slog.Any("error", err))
				continue
			}
			n.logger.Debug("ledger closed", slog.Uint64("sequence", uint64(seq)))
		}
	}
}

// Close releases the database.
func (n *Node) Close() {
	n.closeOnce.Do(n.db.Close)
}

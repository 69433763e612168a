package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signescrow/core/events"
	"signescrow/core/types"
	"signescrow/observability/metrics"
	"signescrow/storage"
	"signescrow/storage/trie"
)

// Config holds the storage lifetime policy.
type Config struct {
	MinPersistentTTL uint32
	MinTemporaryTTL  uint32
	MaxEntryTTL      uint32
}

// DefaultConfig mirrors the lifetimes used on public networks.
func DefaultConfig() Config {
	return Config{
		MinPersistentTTL: 4096,
		MinTemporaryTTL:  16,
		MaxEntryTTL:      535680,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinPersistentTTL == 0 {
		c.MinPersistentTTL = def.MinPersistentTTL
	}
	if c.MinTemporaryTTL == 0 {
		c.MinTemporaryTTL = def.MinTemporaryTTL
	}
	if c.MaxEntryTTL == 0 {
		c.MaxEntryTTL = def.MaxEntryTTL
	}
	return c
}

// TxOptions describe a transaction submitted to Execute.
type TxOptions struct {
	Source types.Principal
	Auths  []Authorization
	// Nonce, when non-zero, must be exactly one above the source's stored nonce
	// and is persisted on commit.
	Nonce uint64
	Hash  string
}

// Receipt summarises a committed transaction.
type Receipt struct {
	Sequence  uint32         `json:"sequence"`
	TxHash    string         `json:"txHash"`
	StateRoot common.Hash    `json:"stateRoot"`
	Events    []*types.Event `json:"events"`
}

// ContractInfo describes a deployed contract.
type ContractInfo struct {
	Name    string          `json:"name"`
	Address types.Principal `json:"address"`
}

type deployed struct {
	name string
	impl any
}

// Ledger hosts contracts, serializes transactions and commits their effects
// atomically.
type Ledger struct {
	mu        sync.Mutex
	db        storage.Database
	cfg       Config
	seq       uint32
	trie      *trie.Trie
	contracts map[types.Principal]deployed
	txCounter uint64

	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.LedgerMetrics
	tracer  trace.Tracer
}

// Open loads the ledger state from db and rebuilds the state commitment.
func Open(db storage.Database, cfg Config) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("ledger: nil database")
	}
	tr, err := trie.New()
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		db:        db,
		cfg:       cfg.withDefaults(),
		seq:       1,
		trie:      tr,
		contracts: make(map[types.Principal]deployed),
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		metrics:   metrics.Ledger(),
		tracer:    otel.Tracer("signescrow/core/ledger"),
	}
	raw, err := db.Get(metaSeqKey)
	switch {
	case err == nil && len(raw) == 4:
		l.seq = binary.BigEndian.Uint32(raw)
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("ledger: read sequence: %w", err)
	}
	for _, prefix := range [][]byte{statePrefix, noncePrefix} {
		if err := db.Iterate(prefix, func(key, value []byte) error {
			return tr.Update(crypto.Keccak256(key), value)
		}); err != nil {
			return nil, fmt.Errorf("ledger: rebuild state root: %w", err)
		}
	}
	if _, err := tr.Commit(uint64(l.seq)); err != nil {
		return nil, err
	}
	l.metrics.SetSequence(l.seq)
	return l, nil
}

// SetEmitter configures the sink for committed events. Nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// SetLogger configures the ledger logger.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger
}

// Config returns the lifetime policy in force.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Deploy registers impl under the deterministic principal derived from name.
func (l *Ledger) Deploy(name string, impl any) (types.Principal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	address := types.ContractPrincipal(name)
	if _, exists := l.contracts[address]; exists {
		return types.ZeroPrincipal, fmt.Errorf("%w: %s", ErrAlreadyDeployed, name)
	}
	l.contracts[address] = deployed{name: name, impl: impl}
	return address, nil
}

// Contracts lists deployed contracts ordered by name.
func (l *Ledger) Contracts() []ContractInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ContractInfo, 0, len(l.contracts))
	for address, d := range l.contracts {
		out = append(out, ContractInfo{Name: d.name, Address: address})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (l *Ledger) contractName(p types.Principal) string {
	if d, ok := l.contracts[p]; ok {
		return d.name
	}
	return p.String()
}

// Sequence returns the open ledger sequence.
func (l *Ledger) Sequence() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// StateRoot returns the commitment over all committed entries.
func (l *Ledger) StateRoot() common.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trie.Root()
}

// Nonce returns the last committed envelope nonce of p.
func (l *Ledger) Nonce(p types.Principal) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.begin(TxOptions{}, true)
	return t.nonce(p)
}

func (l *Ledger) begin(opts TxOptions, readOnly bool) *tx {
	return &tx{
		ledger:   l,
		seq:      l.seq,
		source:   opts.Source,
		readOnly: readOnly,
		overlay:  make(map[string]*entry),
	}
}

// Execute runs fn as a single atomic transaction. Any error discards every
// write and event; success commits both and returns the receipt.
func (l *Ledger) Execute(ctx context.Context, opts TxOptions, fn func(env *Env) error) (*Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	ctx, span := l.tracer.Start(ctx, "ledger.Execute", trace.WithAttributes(
		attribute.Int64("ledger.sequence", int64(l.seq)),
	))
	defer span.End()

	t := l.begin(opts, false)
	for _, auth := range opts.Auths {
		slot, err := newAuthSlot(auth.Address, auth.Invocation)
		if err != nil {
			return nil, l.abort(span, start, fmt.Errorf("ledger: authorization: %w", err))
		}
		t.userAuths = append(t.userAuths, slot)
	}
	if opts.Nonce != 0 {
		current, err := t.nonce(opts.Source)
		if err != nil {
			return nil, l.abort(span, start, err)
		}
		if opts.Nonce != current+1 {
			return nil, l.abort(span, start, fmt.Errorf("%w: have %d, want %d", ErrBadNonce, opts.Nonce, current+1))
		}
		if err := t.setNonce(opts.Source, opts.Nonce); err != nil {
			return nil, l.abort(span, start, err)
		}
	}

	if err := fn(&Env{ctx: ctx, tx: t}); err != nil {
		l.logger.DebugContext(ctx, "transaction aborted",
			slog.String("source", opts.Source.String()),
			slog.Any("error", err))
		return nil, l.abort(span, start, err)
	}

	root, err := l.commit(t)
	if err != nil {
		return nil, l.abort(span, start, err)
	}

	l.txCounter++
	hash := opts.Hash
	if hash == "" {
		var buf [12]byte
		binary.BigEndian.PutUint32(buf[:4], t.seq)
		binary.BigEndian.PutUint64(buf[4:], l.txCounter)
		hash = common.BytesToHash(crypto.Keccak256(buf[:])).Hex()
	}
	receipt := &Receipt{Sequence: t.seq, TxHash: hash, StateRoot: root, Events: t.events}
	for i, evt := range t.events {
		l.metrics.ObserveEvent(evt.Type)
		l.emitter.Emit(events.Committed{Sequence: t.seq, TxHash: hash, Index: i, Event: evt})
	}
	l.metrics.ObserveTransaction("committed", time.Since(start))
	span.SetAttributes(attribute.Int("ledger.events", len(t.events)))
	return receipt, nil
}

func (l *Ledger) abort(span trace.Span, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	l.metrics.ObserveTransaction("aborted", time.Since(start))
	return err
}

// View runs fn against committed state without the ability to write.
func (l *Ledger) View(ctx context.Context, fn func(env *Env) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(&Env{ctx: ctx, tx: l.begin(TxOptions{}, true)})
}

func (l *Ledger) commit(t *tx) (common.Hash, error) {
	if len(t.overlay) == 0 {
		return l.trie.Root(), nil
	}
	keys := make([]string, 0, len(t.overlay))
	for k := range t.overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	batch := l.db.NewBatch()
	encoded := make(map[string][]byte, len(keys))
	for _, k := range keys {
		rec := t.overlay[k]
		if rec == nil {
			batch.Delete([]byte(k))
			continue
		}
		raw, err := encodeEntry(rec)
		if err != nil {
			return common.Hash{}, err
		}
		encoded[k] = raw
		batch.Put([]byte(k), raw)
	}
	if err := batch.Write(); err != nil {
		return common.Hash{}, fmt.Errorf("ledger: write state: %w", err)
	}
	return l.applyTrie(keys, encoded, t.seq)
}

func (l *Ledger) applyTrie(keys []string, encoded map[string][]byte, seq uint32) (common.Hash, error) {
	for _, k := range keys {
		hashed := crypto.Keccak256([]byte(k))
		raw, ok := encoded[k]
		var err error
		if ok {
			err = l.trie.Update(hashed, raw)
		} else {
			err = l.trie.Delete(hashed)
		}
		if err != nil {
			return common.Hash{}, fmt.Errorf("ledger: state commitment out of sync: %w", err)
		}
	}
	return l.trie.Commit(uint64(seq))
}

// Close seals the open ledger and opens the next one.
func (l *Ledger) Close() (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeTo(l.seq + 1)
}

// AdvanceTo closes ledgers until target is the open sequence.
func (l *Ledger) AdvanceTo(target uint32) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if target <= l.seq {
		return l.seq, nil
	}
	return l.closeTo(target)
}

// closeTo drops temporary entries that are dead at target and moves the
// sequence forward.
func (l *Ledger) closeTo(target uint32) (uint32, error) {
	var expired []string
	err := l.db.Iterate(statePrefix, func(key, value []byte) error {
		if classOfStateKey(key) != Temporary {
			return nil
		}
		rec, err := decodeEntry(value)
		if err != nil {
			return err
		}
		if rec.LiveUntil < target {
			expired = append(expired, string(key))
		}
		return nil
	})
	if err != nil {
		return l.seq, fmt.Errorf("ledger: scan expired entries: %w", err)
	}

	batch := l.db.NewBatch()
	for _, k := range expired {
		batch.Delete([]byte(k))
	}
	var seqRaw [4]byte
	binary.BigEndian.PutUint32(seqRaw[:], target)
	batch.Put(metaSeqKey, seqRaw[:])
	if err := batch.Write(); err != nil {
		return l.seq, fmt.Errorf("ledger: close ledger: %w", err)
	}
	if _, err := l.applyTrie(expired, nil, target); err != nil {
		return l.seq, err
	}
	l.seq = target
	l.metrics.SetSequence(target)
	l.metrics.AddPruned(len(expired))
	if len(expired) > 0 {
		l.logger.Debug("pruned expired entries", slog.Int("count", len(expired)), slog.Uint64("sequence", uint64(target)))
	}
	return target, nil
}

// Restore revives an archived persistent entry of contract with the minimum
// persistent TTL. Live or absent entries are left untouched.
func (l *Ledger) Restore(contract types.Principal, k Key) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if k.Class() != Persistent {
		return false, fmt.Errorf("ledger: restore %s entry", k.Class())
	}
	dbKey := stateKey(contract, k)
	t := l.begin(TxOptions{}, false)
	rec, err := t.load(dbKey)
	if err != nil || rec == nil || rec.LiveUntil >= l.seq {
		return false, err
	}
	if err := t.put(dbKey, &entry{LiveUntil: l.initialLiveUntil(l.seq, Persistent), Value: rec.Value}); err != nil {
		return false, err
	}
	if _, err := l.commit(t); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) initialLiveUntil(seq uint32, class StorageClass) uint32 {
	ttl := l.cfg.MinPersistentTTL
	if class == Temporary {
		ttl = l.cfg.MinTemporaryTTL
	}
	return seq + ttl - 1
}

package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/megavibe/megavibe-node/tipClient/config"
	"github.com/megavibe/megavibe-node/tipClient/errors"
	"github.com/megavibe/megavibe-node/tipClient/units"
)

// Config holds the orchestrator tunables
type Config struct {
	TargetChainID  int64
	PlatformFeeBps int64
	Settlement     errors.RetryConfig
}

// ConfigFromApp derives orchestrator settings from the client config
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		TargetChainID:  cfg.TargetChainID,
		PlatformFeeBps: cfg.PlatformFeeBps,
		Settlement: errors.RetryConfig{
			MaxAttempts:  cfg.Settlement.MaxAttempts,
			InitialDelay: time.Duration(cfg.Settlement.InitialDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Settlement.MaxDelayMs) * time.Millisecond,
			Multiplier:   cfg.Settlement.Multiplier,
		},
	}
}

// Dependencies are the collaborators the orchestrator drives
type Dependencies struct {
	Registry ChainRegistry
	Quotes   QuoteProvider
	Native   NativeTransferExecutor
	Wallet   Wallet // may be nil; tips then fail with WALLET_NOT_CONNECTED
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithObserver adds an observer notified of every status of every request
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator routes tips either natively on the target chain or through
// a bridge, reporting progress per request.
type Orchestrator struct {
	cfg       Config
	registry  ChainRegistry
	quotes    QuoteProvider
	native    NativeTransferExecutor
	wallet    Wallet
	observers []Observer
	listeners *listenerRegistry
	logger    zerolog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// New creates an Orchestrator
func New(cfg Config, deps Dependencies, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if deps.Registry == nil {
		return nil, errors.NewConfigError("", "chain registry is required")
	}
	if deps.Quotes == nil {
		return nil, errors.NewConfigError("", "quote provider is required")
	}
	if deps.Native == nil {
		return nil, errors.NewConfigError("", "native transfer executor is required")
	}
	if cfg.TargetChainID == 0 {
		return nil, errors.NewConfigError("", "target chain id is required")
	}
	target, ok := deps.Registry.Chain(cfg.TargetChainID)
	if !ok {
		return nil, errors.NewConfigError("", fmt.Sprintf("target chain %d is not registered", cfg.TargetChainID))
	}
	if !ethcommon.IsHexAddress(target.TipContract) {
		return nil, errors.NewConfigError(target.Name, "target chain has no tip contract configured")
	}
	if cfg.PlatformFeeBps < 0 || cfg.PlatformFeeBps > 10_000 {
		return nil, errors.NewConfigError("", "platform fee must be between 0 and 10000 bps")
	}
	if cfg.Settlement.MaxAttempts <= 0 {
		cfg.Settlement.MaxAttempts = 1
	}
	if cfg.Settlement.Multiplier < 1 {
		cfg.Settlement.Multiplier = 1
	}
	if cfg.Settlement.InitialDelay <= 0 {
		cfg.Settlement.InitialDelay = errors.DefaultRetryConfig().InitialDelay
	}
	// a zero cap would clamp every poll delay to zero
	if cfg.Settlement.MaxDelay < cfg.Settlement.InitialDelay {
		cfg.Settlement.MaxDelay = cfg.Settlement.InitialDelay
	}

	o := &Orchestrator{
		cfg:       cfg,
		registry:  deps.Registry,
		quotes:    deps.Quotes,
		native:    deps.Native,
		wallet:    deps.Wallet,
		listeners: newListenerRegistry(),
		logger:    logger.With().Str("component", "tip_orchestrator").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// TargetChainID returns the chain every tip settles on
func (o *Orchestrator) TargetChainID() int64 {
	return o.cfg.TargetChainID
}

// ActiveListeners returns how many requests still hold a registered listener
func (o *Orchestrator) ActiveListeners() int {
	return o.listeners.len()
}

// Wait blocks until every flow started with Start has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// prepared is a validated request ready to run
type prepared struct {
	id     string
	req    TipRequest
	path   Path
	amount *big.Int
	sender string
}

// SendTip executes a tip and blocks until it reaches a terminal status.
// Validation failures are returned as errors before any status is emitted.
// Execution failures are reported through a failed status and an
// unsuccessful result, never as an error.
func (o *Orchestrator) SendTip(ctx context.Context, req TipRequest, listener StatusListener) (*TransferResult, error) {
	p, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	o.listeners.register(p.id, listener)
	return o.run(ctx, p), nil
}

func (o *Orchestrator) prepare(ctx context.Context, req TipRequest) (*prepared, error) {
	if !req.AmountUSD.IsPositive() {
		return nil, errors.NewInvalidAmountError(fmt.Sprintf("tip amount must be greater than zero, got %s", req.AmountUSD.String()))
	}
	amount, err := units.ToSmallestUnit(req.AmountUSD)
	if err != nil {
		return nil, errors.NewInvalidAmountError(err.Error())
	}
	if amount.Sign() <= 0 {
		return nil, errors.NewInvalidAmountError("tip amount is below the smallest USDC unit")
	}
	if strings.TrimSpace(req.RecipientAddress) == "" {
		return nil, errors.NewValidationError("", "recipient address is required")
	}
	if !ethcommon.IsHexAddress(req.RecipientAddress) {
		return nil, errors.NewValidationError("", fmt.Sprintf("recipient address %q is not a valid address", req.RecipientAddress))
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageLength {
		return nil, errors.NewValidationError("", fmt.Sprintf("message exceeds %d characters", MaxMessageLength))
	}

	switch req.TargetChainID {
	case 0:
		req.TargetChainID = o.cfg.TargetChainID
	case o.cfg.TargetChainID:
	default:
		return nil, errors.NewValidationError("", fmt.Sprintf("tips settle on chain %d, got target %d", o.cfg.TargetChainID, req.TargetChainID))
	}
	if !o.registry.IsSupported(req.SourceChainID) {
		return nil, errors.NewValidationError("", fmt.Sprintf("source chain %d is not supported", req.SourceChainID))
	}

	if o.wallet == nil {
		return nil, errors.NewWalletNotConnectedError(nil)
	}
	sender, err := o.wallet.Address(ctx)
	if err != nil {
		return nil, errors.NewWalletNotConnectedError(err)
	}
	if sender == "" {
		return nil, errors.NewWalletNotConnectedError(nil)
	}

	return &prepared{
		id:     o.newRequestID(),
		req:    req,
		path:   req.PathFor(),
		amount: amount,
		sender: sender,
	}, nil
}

func (o *Orchestrator) newRequestID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("tip_%d_%s", o.now().UnixMilli(), suffix)
}

// run drives one flow to its terminal status
func (o *Orchestrator) run(ctx context.Context, p *prepared) (result *TransferResult) {
	f := &flow{o: o, id: p.id, req: p.req}
	f.logger = o.logger.With().
		Str("request_id", p.id).
		Str("path", string(p.path)).
		Int64("source_chain", p.req.SourceChainID).
		Int64("target_chain", p.req.TargetChainID).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error().Interface("panic", r).Msg("tip flow panicked")
			result = f.fail(errors.NewInternalError("", "tip flow aborted", fmt.Errorf("panic: %v", r)), "")
		}
		if !f.isTerminal() {
			result = f.fail(errors.NewInternalError("", "tip flow ended without a result", nil), "")
		}
		o.listeners.remove(p.id)
	}()

	f.logger.Info().Str("amount_usd", p.req.AmountUSD.String()).Msg("starting tip")
	if p.path == PathNative {
		return o.runNative(ctx, f, p)
	}
	return o.runBridged(ctx, f, p)
}

func (o *Orchestrator) runNative(ctx context.Context, f *flow, p *prepared) *TransferResult {
	chainName := o.registry.ChainName(p.req.TargetChainID)
	f.emit(TransferStatus{
		Kind:    StatusPending,
		Message: fmt.Sprintf("Sending %s USDC tip on %s", units.FormatUSDC(p.amount), chainName),
	})

	txHash, err := o.native.TipSpeaker(ctx, p.req.RecipientAddress, p.amount, p.req.Message, p.req.EventID, p.req.SpeakerID)
	if err != nil {
		return f.fail(errors.NewExecutionError(chainName, "tip transaction failed", err), "")
	}

	f.emit(TransferStatus{
		Kind:    StatusCompleted,
		TxHash:  txHash,
		Message: fmt.Sprintf("Tip confirmed on %s", chainName),
	})
	return &TransferResult{Success: true, TxHash: txHash}
}

func (o *Orchestrator) runBridged(ctx context.Context, f *flow, p *prepared) *TransferResult {
	sourceName := o.registry.ChainName(p.req.SourceChainID)
	targetName := o.registry.ChainName(p.req.TargetChainID)
	f.emit(TransferStatus{
		Kind:    StatusPending,
		Message: fmt.Sprintf("Finding a route from %s to %s", sourceName, targetName),
	})

	routes, err := o.quotes.GetRoutes(ctx, o.routeRequest(p.req.SourceChainID, p.sender, p.amount))
	if err != nil {
		return f.fail(errors.NewExecutionError(sourceName, "route search failed", err), "")
	}
	route, ok := selectRoute(routes)
	if !ok {
		return f.fail(errors.NewNoRouteFoundError(sourceName).
			WithContext("routes_returned", len(routes)), "")
	}
	quote := o.buildQuote(route, p.req.AmountUSD, p.amount)
	f.logger.Info().
		Str("route", route.ID).
		Str("tool", route.Tool).
		Str("target_amount", units.FormatUSDC(quote.TargetAmount)).
		Str("fees_usd", quote.Fees.Total().StringFixed(2)).
		Msg("route selected")

	f.emit(TransferStatus{
		Kind:           StatusBridging,
		RouteReference: route.ID,
		Quote:          quote,
		Message:        fmt.Sprintf("Bridging %s USDC from %s to %s", units.FormatUSDC(quote.SourceAmount), sourceName, targetName),
	})

	// once value is moving, caller cancellation must not strand it
	execCtx := context.WithoutCancel(ctx)
	txHash, err := o.quotes.ExecuteRoute(execCtx, route)
	if err != nil {
		return f.fail(errors.NewExecutionError(sourceName, "bridge execution failed", err), route.ID)
	}

	f.emit(TransferStatus{
		Kind:           StatusConfirming,
		TxHash:         txHash,
		RouteReference: route.ID,
		Message:        fmt.Sprintf("Waiting for the bridge to settle on %s", targetName),
	})
	return o.awaitSettlement(execCtx, f, route, txHash)
}

func (o *Orchestrator) routeRequest(sourceChainID int64, sender string, amount *big.Int) RouteRequest {
	rr := RouteRequest{
		FromChainID: sourceChainID,
		ToChainID:   o.cfg.TargetChainID,
		FromAddress: sender,
		Amount:      new(big.Int).Set(amount),
	}
	if src, ok := o.registry.Chain(sourceChainID); ok {
		rr.FromToken = src.USDCAddress
	}
	if dst, ok := o.registry.Chain(o.cfg.TargetChainID); ok {
		rr.ToToken = dst.USDCAddress
		rr.ToAddress = dst.TipContract
	}
	return rr
}

// flow is the per-request emitter. It enforces a single terminal status.
type flow struct {
	o      *Orchestrator
	id     string
	req    TipRequest
	logger zerolog.Logger

	mu       sync.Mutex
	terminal bool
}

func (f *flow) isTerminal() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminal
}

func (f *flow) emit(status TransferStatus) {
	f.mu.Lock()
	if f.terminal {
		f.mu.Unlock()
		f.logger.Warn().Str("status", string(status.Kind)).Msg("dropping status after terminal")
		return
	}
	if status.Kind.IsTerminal() {
		f.terminal = true
	}
	f.mu.Unlock()

	status.Timestamp = f.o.now()
	f.logger.Debug().Str("status", string(status.Kind)).Str("tx_hash", status.TxHash).Msg(status.Message)

	for _, obs := range f.o.observers {
		f.notify(func() { obs.OnStatus(f.id, f.req, status) })
	}
	if l, ok := f.o.listeners.get(f.id); ok {
		f.notify(func() { l(status) })
	}
	if status.Kind.IsTerminal() {
		f.o.listeners.remove(f.id)
	}
}

// notify shields the flow from misbehaving listeners
func (f *flow) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error().Interface("panic", r).Msg("status listener panicked")
		}
	}()
	fn()
}

func (f *flow) fail(err *errors.TipError, routeRef string) *TransferResult {
	detail := err.Message
	if err.Cause != nil {
		detail = fmt.Sprintf("%s: %v", err.Message, err.Cause)
	}
	f.logger.Error().Err(err).Str("route", routeRef).Msg("tip failed")
	f.emit(TransferStatus{
		Kind:           StatusFailed,
		Message:        detail,
		RouteReference: routeRef,
		Err:            err,
	})
	return &TransferResult{Success: false, RouteReference: routeRef, ErrorMessage: detail}
}

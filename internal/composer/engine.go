// Package composer contains the message-processing core of the vault
// network: the per-chain engine that gates, dedups, and dispatches inbound
// messages, the stream consumer feeding it, the hub-side advisory
// broadcaster, and the runtime supervision around them.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/omnivault/crosschain-composer/internal/alert"
	"github.com/omnivault/crosschain-composer/internal/auth"
	"github.com/omnivault/crosschain-composer/internal/custody"
	"github.com/omnivault/crosschain-composer/internal/domain/event"
	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/metrics"
	"github.com/omnivault/crosschain-composer/internal/protocol"
	"github.com/omnivault/crosschain-composer/internal/ratelimit"
	"github.com/omnivault/crosschain-composer/internal/store"
	redisstream "github.com/omnivault/crosschain-composer/internal/store/redis"
	"github.com/omnivault/crosschain-composer/internal/tracing"
	"github.com/omnivault/crosschain-composer/internal/txindex"
)

// Publisher pushes one JSON document onto a named stream. Satisfied by the
// redis stream transport and its in-memory variant.
type Publisher interface {
	PublishJSON(ctx context.Context, stream string, v any) (string, error)
}

// FeeQuoter prices one outbound message toward its target endpoint.
type FeeQuoter interface {
	Quote(ctx context.Context, msg *model.Message, opts model.DeliveryOptions, requireValidatorCheck bool) (model.FeeQuote, error)
}

// Verifier authenticates one inbound envelope against its attestation.
// Satisfied by the validator gateway.
type Verifier interface {
	Verify(ctx context.Context, sourceEid uint32, envelope, attestation []byte) error
}

// EngineConfig identifies the chain an engine operates.
type EngineConfig struct {
	// Local is the chain identity this engine processes messages for.
	Local model.ChainIdentity
	// LocalAddress is this composer's counterpart address, claimed as
	// sender on every outbound delivery. Remote peers whitelist it.
	LocalAddress string
}

// Engine is the per-chain message core. Inbound deliveries pass the peer
// gate, the validator gate, and the dedup claim, in that order; only then
// is custody invoked and the journal written, all inside one store
// transaction. Outbound sends share the peer gate and the quoting path.
//
// Receive is safe for concurrent callers: the claim's unique-key insert is
// the single linearization point, so any number of racing deliveries of
// one transaction id produce exactly one custody call.
type Engine struct {
	cfg       EngineConfig
	db        store.TxBeginner
	peers     store.PeerRepository
	verifier  Verifier
	custody   custody.Ledger
	quoter    FeeQuoter
	transport Publisher
	logger    *slog.Logger

	dupIndex txindex.Index
	limiter  *ratelimit.Limiter
	alerter  alert.Alerter
	invoke   auth.Capability
}

type EngineOption func(*Engine)

// WithDupIndex installs the duplicate fast-path index. Redelivered
// transfers found in it short-circuit to ErrAlreadyProcessed without
// opening a store transaction.
func WithDupIndex(idx txindex.Index) EngineOption {
	return func(e *Engine) {
		e.dupIndex = idx
	}
}

// WithRateLimiter applies a token-bucket limiter to outbound publishes.
func WithRateLimiter(l *ratelimit.Limiter) EngineOption {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithAlerter wires custody failures to the alerting channels.
func WithAlerter(a alert.Alerter) EngineOption {
	return func(e *Engine) {
		e.alerter = a
	}
}

// WithCapability replaces the minted invocation capability, for topologies
// where the token is shared with external callers through config.
func WithCapability(c auth.Capability) EngineOption {
	return func(e *Engine) {
		e.invoke = c
	}
}

func NewEngine(
	cfg EngineConfig,
	db store.TxBeginner,
	peers store.PeerRepository,
	verifier Verifier,
	custodyLedger custody.Ledger,
	feeQuoter FeeQuoter,
	transport Publisher,
	logger *slog.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		cfg:       cfg,
		db:        db,
		peers:     peers,
		verifier:  verifier,
		custody:   custodyLedger,
		quoter:    feeQuoter,
		transport: transport,
		logger:    logger.With("component", "engine", "chain", cfg.Local.Name),
		invoke:    auth.Mint(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Local returns the chain identity this engine operates.
func (e *Engine) Local() model.ChainIdentity { return e.cfg.Local }

// Limiter returns the outbound rate limiter, nil when none is installed.
func (e *Engine) Limiter() *ratelimit.Limiter { return e.limiter }

// InvokeCapability returns the capability gating Send. The broadcaster and
// the admin quote path present it; external callers receive it via config.
func (e *Engine) InvokeCapability() auth.Capability { return e.invoke }

// Receive processes one inbound delivery end to end. Message-level
// rejections are journaled as MESSAGE_REJECTED and returned as taxonomy
// errors; infrastructure failures are returned unjournaled so the consumer
// can classify and retry them. Duplicates return ErrAlreadyProcessed
// without a journal row, keeping "delivered twice, journaled once" true
// under arbitrary redelivery.
func (e *Engine) Receive(ctx context.Context, d *event.Delivery) (*event.Receipt, error) {
	spanCtx, span := tracing.Tracer("composer").Start(ctx, "engine.receive",
		otelTrace.WithAttributes(
			attribute.String("chain", e.cfg.Local.Name),
			attribute.Int("envelope_bytes", len(d.Envelope)),
		),
	)
	defer span.End()

	start := time.Now()
	kindLabel := "undecoded"
	defer func() {
		metrics.EngineProcessLatency.WithLabelValues(e.cfg.Local.Name, kindLabel).Observe(time.Since(start).Seconds())
	}()

	receipt, err := e.receive(spanCtx, d, &kindLabel)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("transaction_id", receipt.TransactionID.String()))
	return receipt, nil
}

func (e *Engine) receive(ctx context.Context, d *event.Delivery, kindLabel *string) (*event.Receipt, error) {
	localEid := e.cfg.Local.EndpointID

	msg, err := protocol.Decode(d.Envelope)
	if err != nil {
		// Nothing trustworthy was recovered; the rejection row carries
		// only the local endpoint.
		e.journalRejection(ctx, nil, err)
		return nil, err
	}
	*kindLabel = msg.Kind.String()
	metrics.EngineMessagesTotal.WithLabelValues(e.cfg.Local.Name, msg.Kind.String()).Inc()

	if msg.TargetEid != localEid {
		rejErr := fmt.Errorf("delivery for eid %d reached eid %d: %w", msg.TargetEid, localEid, protocol.ErrMalformedPayload)
		e.journalRejection(ctx, msg, rejErr)
		return nil, rejErr
	}
	if err := msg.Validate(); err != nil {
		rejErr := fmt.Errorf("%w: %w", protocol.ErrMalformedPayload, err)
		e.journalRejection(ctx, msg, rejErr)
		return nil, rejErr
	}

	// Peer gate. The registered counterpart must exist, be whitelisted,
	// and match the sender the transport claims.
	peer, err := e.peers.Find(ctx, localEid, msg.SourceEid)
	if err != nil {
		return nil, fmt.Errorf("peer lookup eid=%d: %w", msg.SourceEid, err)
	}
	if peer == nil || !peer.Whitelisted {
		rejErr := fmt.Errorf("source eid %d has no whitelisted peer: %w", msg.SourceEid, ErrUntrustedSource)
		e.journalRejection(ctx, msg, rejErr)
		return nil, rejErr
	}
	if protocol.CanonicalAddress(d.Sender) != protocol.CanonicalAddress(peer.RemoteAddress) {
		rejErr := fmt.Errorf("sender %q is not the registered peer of eid %d: %w", d.Sender, msg.SourceEid, ErrUntrustedSource)
		e.journalRejection(ctx, msg, rejErr)
		return nil, rejErr
	}

	// Validator gate.
	if err := e.verifier.Verify(ctx, msg.SourceEid, d.Envelope, d.Attestation); err != nil {
		rejErr := fmt.Errorf("source eid %d: %w: %w", msg.SourceEid, ErrValidationFailed, err)
		e.journalRejection(ctx, msg, rejErr)
		return nil, rejErr
	}

	// Duplicate fast path. A positive answer is always backed by a
	// committed ledger row, so no transaction is needed to reject here.
	if e.dupIndex != nil && e.dupIndex.Seen(ctx, localEid, msg.TransactionID) {
		metrics.EngineDuplicatesTotal.WithLabelValues(e.cfg.Local.Name, msg.Kind.String()).Inc()
		return nil, fmt.Errorf("transaction %s: %w", msg.TransactionID, ErrAlreadyProcessed)
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Warn("rollback failed", "transaction_id", msg.TransactionID, "error", rbErr)
		}
	}()

	rec := &model.TransactionRecord{
		TransactionID: msg.TransactionID,
		LocalEid:      localEid,
		SourceEid:     msg.SourceEid,
		Kind:          msg.Kind,
		User:          msg.User,
	}
	claimed, err := tx.ClaimTransfer(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("claim transfer %s: %w", msg.TransactionID, err)
	}
	if !claimed {
		metrics.EngineDuplicatesTotal.WithLabelValues(e.cfg.Local.Name, msg.Kind.String()).Inc()
		return nil, fmt.Errorf("transaction %s: %w", msg.TransactionID, ErrAlreadyProcessed)
	}

	receipt := &event.Receipt{TransactionID: msg.TransactionID, Kind: msg.Kind}
	var outbound []event.Outbound

	switch msg.Kind {
	case model.KindSpokeDeposit:
		shares, err := e.credit(ctx, msg.User, msg.Amount)
		if err != nil {
			return nil, e.custodyReject(ctx, tx, msg, err)
		}
		ev := model.VaultEvent{
			LocalEid:      localEid,
			Kind:          model.EventHubDepositReceived,
			TransactionID: msg.TransactionID,
			User:          msg.User,
			Amount:        msg.Amount,
			Shares:        shares,
			SourceEid:     msg.SourceEid,
		}
		if err := tx.AppendEvent(ctx, &ev); err != nil {
			return nil, fmt.Errorf("journal deposit %s: %w", msg.TransactionID, err)
		}
		receipt.Events = append(receipt.Events, ev)
		outbound = append(outbound, event.Outbound{
			TargetEid: msg.SourceEid,
			Sender:    e.cfg.LocalAddress,
			Message: model.Message{
				Kind:          model.KindSpokeDepositAck,
				TransactionID: msg.TransactionID,
				User:          msg.User,
				Amount:        msg.Amount,
				Shares:        shares,
				SourceEid:     localEid,
				TargetEid:     msg.SourceEid,
			},
		})

	case model.KindSpokeWithdraw:
		amount, err := e.debit(ctx, msg.User, msg.Shares)
		if err != nil {
			return nil, e.custodyReject(ctx, tx, msg, err)
		}
		ev := model.VaultEvent{
			LocalEid:      localEid,
			Kind:          model.EventWithdrawProcessed,
			TransactionID: msg.TransactionID,
			User:          msg.User,
			Amount:        amount,
			Shares:        msg.Shares,
			SourceEid:     msg.SourceEid,
		}
		if err := tx.AppendEvent(ctx, &ev); err != nil {
			return nil, fmt.Errorf("journal withdraw %s: %w", msg.TransactionID, err)
		}
		receipt.Events = append(receipt.Events, ev)
		outbound = append(outbound, event.Outbound{
			TargetEid: msg.SourceEid,
			Sender:    e.cfg.LocalAddress,
			Message: model.Message{
				Kind:          model.KindSpokeWithdrawAck,
				TransactionID: msg.TransactionID,
				User:          msg.User,
				Amount:        amount,
				Shares:        msg.Shares,
				SourceEid:     localEid,
				TargetEid:     msg.SourceEid,
			},
		})

	case model.KindSpokeDepositAck, model.KindSpokeWithdrawAck:
		// Terminal notifications on the originating chain: no custody
		// mutation, journaled so callers can correlate round trips.
		ev := model.VaultEvent{
			LocalEid:      localEid,
			Kind:          model.EventAckObserved,
			TransactionID: msg.TransactionID,
			User:          msg.User,
			Amount:        msg.Amount,
			Shares:        msg.Shares,
			SourceEid:     msg.SourceEid,
		}
		if err := tx.AppendEvent(ctx, &ev); err != nil {
			return nil, fmt.Errorf("journal ack %s: %w", msg.TransactionID, err)
		}
		receipt.Events = append(receipt.Events, ev)

	case model.KindAdvisorySyncFromHub:
		rec, derr := protocol.DecodeRecommendation(msg.Payload)
		if derr != nil {
			// Release the claim before journaling in a fresh unit of work.
			if rbErr := tx.Rollback(); rbErr != nil {
				e.logger.Warn("rollback failed", "transaction_id", msg.TransactionID, "error", rbErr)
			}
			e.journalRejection(ctx, msg, derr)
			return nil, derr
		}
		if rec.Confidence < model.MinSyncConfidence {
			return e.rejectLowConfidenceSync(ctx, tx, msg, rec)
		}
		action := rec.Action.String()
		confidence := int16(rec.Confidence)
		ev := model.VaultEvent{
			LocalEid:         localEid,
			Kind:             model.EventAdvisorySyncApplied,
			TransactionID:    msg.TransactionID,
			User:             rec.User,
			SourceEid:        msg.SourceEid,
			RecommendationID: &rec.RecommendationID,
			Action:           &action,
			Confidence:       &confidence,
		}
		if err := tx.AppendEvent(ctx, &ev); err != nil {
			return nil, fmt.Errorf("journal advisory %s: %w", msg.TransactionID, err)
		}
		receipt.Events = append(receipt.Events, ev)
		metrics.AdvisoryAppliedTotal.WithLabelValues(e.cfg.Local.Name).Inc()

	default:
		// Decode already rejected unknown kinds; reaching here means the
		// kind set grew without a dispatch arm.
		return nil, fmt.Errorf("kind %d: %w", uint8(msg.Kind), protocol.ErrUnknownMessageKind)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transfer %s: %w", msg.TransactionID, err)
	}
	committed = true
	metrics.EngineAcceptedTotal.WithLabelValues(e.cfg.Local.Name, msg.Kind.String()).Inc()
	if e.dupIndex != nil {
		e.dupIndex.Record(localEid, rec)
	}

	// Acks go out only after the claim is durable. A publish failure here
	// is logged, not returned: the transfer is committed, a redelivery
	// dedups, so failing the receive could never replay the ack.
	for i := range outbound {
		if err := e.dispatch(ctx, &outbound[i]); err != nil {
			e.logger.Error("ack dispatch failed",
				"transaction_id", msg.TransactionID,
				"target_eid", outbound[i].TargetEid,
				"kind", outbound[i].Message.Kind.String(),
				"error", err,
			)
			continue
		}
		receipt.Outbound = append(receipt.Outbound, outbound[i])
	}

	e.logger.Info("message processed",
		"kind", msg.Kind.String(),
		"transaction_id", msg.TransactionID,
		"source_eid", msg.SourceEid,
		"user", msg.User,
	)
	return receipt, nil
}

// rejectLowConfidenceSync journals the drop and commits the claim, so a
// redelivered low-confidence sync dedups instead of journaling again.
func (e *Engine) rejectLowConfidenceSync(ctx context.Context, tx store.Tx, msg *model.Message, rec *model.Recommendation) (*event.Receipt, error) {
	reason := model.RejectLowConfidence
	action := rec.Action.String()
	confidence := int16(rec.Confidence)
	ev := model.VaultEvent{
		LocalEid:         e.cfg.Local.EndpointID,
		Kind:             model.EventMessageRejected,
		TransactionID:    msg.TransactionID,
		User:             rec.User,
		SourceEid:        msg.SourceEid,
		Reason:           &reason,
		RecommendationID: &rec.RecommendationID,
		Action:           &action,
		Confidence:       &confidence,
	}
	if err := tx.AppendEvent(ctx, &ev); err != nil {
		return nil, fmt.Errorf("journal low-confidence sync %s: %w", msg.TransactionID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit low-confidence sync %s: %w", msg.TransactionID, err)
	}
	metrics.AdvisoryLowConfidenceTotal.WithLabelValues(e.cfg.Local.Name).Inc()
	metrics.EngineRejectedTotal.WithLabelValues(e.cfg.Local.Name, string(model.RejectLowConfidence)).Inc()
	if e.dupIndex != nil {
		e.dupIndex.Record(e.cfg.Local.EndpointID, &model.TransactionRecord{
			TransactionID: msg.TransactionID,
			LocalEid:      e.cfg.Local.EndpointID,
			SourceEid:     msg.SourceEid,
			Kind:          msg.Kind,
			User:          msg.User,
		})
	}
	return nil, fmt.Errorf("recommendation %s confidence %d below %d: %w",
		rec.RecommendationID, rec.Confidence, model.MinSyncConfidence, ErrLowConfidence)
}

// custodyReject rolls back the claim, journals the failure, and raises the
// custody alert. The returned error carries both ErrCustodyFailure and the
// ledger's own sentinel.
func (e *Engine) custodyReject(ctx context.Context, tx store.Tx, msg *model.Message, cause error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		e.logger.Warn("rollback failed", "transaction_id", msg.TransactionID, "error", rbErr)
	}
	rejErr := fmt.Errorf("%w: %s %s: %w", ErrCustodyFailure, msg.Kind, msg.TransactionID, cause)
	e.journalRejection(ctx, msg, rejErr)
	if e.alerter != nil {
		_ = e.alerter.Send(ctx, alert.Alert{
			Type:    alert.AlertTypeCustodyFailure,
			Chain:   e.cfg.Local.Name,
			Title:   "Custody operation failed",
			Message: cause.Error(),
			Fields: map[string]string{
				"kind":           msg.Kind.String(),
				"transaction_id": msg.TransactionID.String(),
				"user":           msg.User,
			},
		})
	}
	return rejErr
}

// journalRejection writes the MESSAGE_REJECTED row in its own unit of
// work, best effort: a journal outage must not mask the rejection itself.
// msg may be nil when the envelope never decoded.
func (e *Engine) journalRejection(ctx context.Context, msg *model.Message, cause error) {
	reason, ok := RejectReason(cause)
	if !ok {
		return
	}
	metrics.EngineRejectedTotal.WithLabelValues(e.cfg.Local.Name, string(reason)).Inc()

	ev := model.VaultEvent{
		LocalEid: e.cfg.Local.EndpointID,
		Kind:     model.EventMessageRejected,
		Reason:   &reason,
	}
	if msg != nil {
		ev.TransactionID = msg.TransactionID
		ev.User = msg.User
		ev.Amount = msg.Amount
		ev.Shares = msg.Shares
		ev.SourceEid = msg.SourceEid
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		e.logger.Warn("rejection journal unavailable", "reason", reason, "error", err)
		return
	}
	if err := tx.AppendEvent(ctx, &ev); err != nil {
		e.logger.Warn("rejection journal append failed", "reason", reason, "error", err)
		_ = tx.Rollback()
		return
	}
	if err := tx.Commit(); err != nil {
		e.logger.Warn("rejection journal commit failed", "reason", reason, "error", err)
		return
	}
	e.logger.Warn("message rejected",
		"reason", reason,
		"error", cause,
	)
}

func (e *Engine) credit(ctx context.Context, user string, amount uint64) (uint64, error) {
	start := time.Now()
	shares, err := e.custody.Credit(ctx, user, amount)
	metrics.CustodyLatency.WithLabelValues(e.cfg.Local.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CustodyFailuresTotal.WithLabelValues(e.cfg.Local.Name).Inc()
		return 0, err
	}
	metrics.CustodyCreditsTotal.WithLabelValues(e.cfg.Local.Name).Inc()
	return shares, nil
}

func (e *Engine) debit(ctx context.Context, user string, shares uint64) (uint64, error) {
	start := time.Now()
	amount, err := e.custody.Debit(ctx, user, shares)
	metrics.CustodyLatency.WithLabelValues(e.cfg.Local.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CustodyFailuresTotal.WithLabelValues(e.cfg.Local.Name).Inc()
		return 0, err
	}
	metrics.CustodyDebitsTotal.WithLabelValues(e.cfg.Local.Name).Inc()
	return amount, nil
}

// SendRequest describes one outbound transfer or advisory sync.
type SendRequest struct {
	Kind      model.MessageKind
	TargetEid uint32
	User      string
	Amount    uint64
	Shares    uint64
	Payload   []byte
	// SenderRef is the caller's reference for the logical transfer (a
	// nonce, order id, or upstream tx hash). Re-sends with the same ref
	// derive the same transaction id and dedup on the receiver.
	SenderRef string
	Options   model.DeliveryOptions
}

// Send composes, prices, and publishes one outbound message. The caller
// must hold the invocation capability; advisory sends below the confidence
// floor fail symmetric to the receive side. The transaction id is derived
// from the request content, never random.
func (e *Engine) Send(ctx context.Context, cap auth.Capability, req SendRequest) (*event.SendReceipt, error) {
	spanCtx, span := tracing.Tracer("composer").Start(ctx, "engine.send",
		otelTrace.WithAttributes(
			attribute.String("chain", e.cfg.Local.Name),
			attribute.String("kind", req.Kind.String()),
			attribute.Int("target_eid", int(req.TargetEid)),
		),
	)
	defer span.End()

	receipt, err := e.send(spanCtx, cap, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return receipt, nil
}

func (e *Engine) send(ctx context.Context, cap auth.Capability, req SendRequest) (*event.SendReceipt, error) {
	localEid := e.cfg.Local.EndpointID

	if !e.invoke.Grants(cap) {
		metrics.EngineRejectedTotal.WithLabelValues(e.cfg.Local.Name, string(model.RejectNotAuthorized)).Inc()
		return nil, fmt.Errorf("composer invocation: %w", ErrNotAuthorized)
	}

	if req.Kind == model.KindAdvisorySyncFromHub {
		rec, err := protocol.DecodeRecommendation(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("advisory send: %w", err)
		}
		if rec.Confidence < model.MinSyncConfidence {
			metrics.AdvisoryLowConfidenceTotal.WithLabelValues(e.cfg.Local.Name).Inc()
			metrics.EngineRejectedTotal.WithLabelValues(e.cfg.Local.Name, string(model.RejectLowConfidence)).Inc()
			return nil, fmt.Errorf("recommendation %s confidence %d below %d: %w",
				rec.RecommendationID, rec.Confidence, model.MinSyncConfidence, ErrLowConfidence)
		}
	}

	user := protocol.CanonicalUser(req.User)
	txid := protocol.DeriveTransactionID(protocol.TransferIntent{
		Kind:      req.Kind,
		SourceEid: localEid,
		TargetEid: req.TargetEid,
		User:      user,
		Amount:    req.Amount,
		Shares:    req.Shares,
		Payload:   req.Payload,
		SenderRef: req.SenderRef,
	})
	msg := &model.Message{
		Kind:          req.Kind,
		TransactionID: txid,
		User:          user,
		Amount:        req.Amount,
		Shares:        req.Shares,
		SourceEid:     localEid,
		TargetEid:     req.TargetEid,
		Payload:       req.Payload,
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrMalformedPayload, err)
	}

	peer, err := e.peers.Find(ctx, localEid, req.TargetEid)
	if err != nil {
		return nil, fmt.Errorf("peer lookup eid=%d: %w", req.TargetEid, err)
	}
	if peer == nil || !peer.Whitelisted {
		metrics.EngineRejectedTotal.WithLabelValues(e.cfg.Local.Name, string(model.RejectTargetNotConfigured)).Inc()
		return nil, fmt.Errorf("target eid %d: %w", req.TargetEid, ErrTargetNotConfigured)
	}

	quote, err := e.quoter.Quote(ctx, msg, req.Options, false)
	if err != nil {
		return nil, fmt.Errorf("quote toward eid %d: %w", req.TargetEid, err)
	}

	out := event.Outbound{
		TargetEid: req.TargetEid,
		Sender:    e.cfg.LocalAddress,
		Message:   *msg,
		Quote:     quote,
	}
	streamID, err := e.publish(ctx, &out)
	if err != nil {
		metrics.OutboundDispatchErrors.WithLabelValues(e.cfg.Local.Name, req.Kind.String()).Inc()
		return nil, err
	}

	e.logger.Info("message sent",
		"kind", req.Kind.String(),
		"transaction_id", txid,
		"target_eid", req.TargetEid,
		"native_fee", quote.NativeFee,
	)
	return &event.SendReceipt{TransactionID: txid, Quote: quote, StreamID: streamID}, nil
}

// dispatch prices and publishes one engine-originated message (acks). The
// quote travels on the receipt for observability; failure paths are the
// caller's to log.
func (e *Engine) dispatch(ctx context.Context, out *event.Outbound) error {
	quote, err := e.quoter.Quote(ctx, &out.Message, model.DeliveryOptions{}, false)
	if err != nil {
		metrics.OutboundDispatchErrors.WithLabelValues(e.cfg.Local.Name, out.Message.Kind.String()).Inc()
		return fmt.Errorf("quote toward eid %d: %w", out.TargetEid, err)
	}
	out.Quote = quote
	if _, err := e.publish(ctx, out); err != nil {
		metrics.OutboundDispatchErrors.WithLabelValues(e.cfg.Local.Name, out.Message.Kind.String()).Inc()
		return err
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, out *event.Outbound) (string, error) {
	env, err := protocol.Encode(&out.Message)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", out.Message.Kind, err)
	}
	out.Envelope = env

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("outbound rate limit: %w", err)
		}
	}

	start := time.Now()
	streamID, err := e.transport.PublishJSON(ctx, redisstream.InboundStream(out.TargetEid), event.Delivery{
		Sender:     out.Sender,
		Envelope:   env,
		EnqueuedAt: time.Now().UTC(),
	})
	metrics.OutboundSendLatency.WithLabelValues(e.cfg.Local.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("publish toward eid %d: %w", out.TargetEid, err)
	}
	metrics.OutboundDispatchedTotal.WithLabelValues(e.cfg.Local.Name, out.Message.Kind.String()).Inc()
	return streamID, nil
}

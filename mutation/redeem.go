// Package mutation runs point redemptions against the cache: the balance is
// flagged pending while the server decides, then either replaced by the
// server's value or re-fetched.
package mutation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/model"
	"github.com/unkn0wn-root/swrcache/resource"
	"github.com/unkn0wn-root/swrcache/transport"
)

const redeemPath = "points/redeem"

// Phase is the state of one redemption.
type Phase int

const (
	Idle Phase = iota
	Optimistic
	Committed
	RolledBack
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Optimistic:
		return "optimistic"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Outcome describes how a redemption ended. Balance is the server's value
// after commit, or the re-fetched value after rollback when that fetch
// succeeded.
type Outcome struct {
	ProductID string
	Phase     Phase
	Result    model.RedemptionResult
	Balance   model.Balance
}

type Options struct {
	Logger swrcache.Logger // nil => NopLogger
	Now    func() time.Time
	// OnTransition observes every phase change. It must not block.
	OnTransition func(productID string, from, to Phase)
}

// Redeemer coordinates redemptions for the authenticated caller. The server
// redeems for whoever holds the token, so only the caller's own balance key
// is ever written.
type Redeemer struct {
	cat     *resource.Catalog
	balance *resource.Resource[model.Balance]
	log     swrcache.Logger
	now     func() time.Time
	onTrans func(string, Phase, Phase)

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(cat *resource.Catalog, opts Options) *Redeemer {
	r := &Redeemer{
		cat:      cat,
		balance:  cat.PointsBalance(""),
		log:      opts.Logger,
		now:      opts.Now,
		onTrans:  opts.OnTransition,
		inflight: make(map[string]struct{}),
	}
	if r.log == nil {
		r.log = swrcache.NopLogger{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// IsRedeeming reports whether a redemption of productID is in flight.
func (r *Redeemer) IsRedeeming(productID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[productID]
	return ok
}

func (r *Redeemer) begin(productID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inflight[productID]; ok {
		return false
	}
	r.inflight[productID] = struct{}{}
	return true
}

func (r *Redeemer) end(productID string) {
	r.mu.Lock()
	delete(r.inflight, productID)
	r.mu.Unlock()
}

// Redeem spends p.PointsRequired on p. Local checks fail fast without a
// request; once the request is sent the call always ends Committed or
// RolledBack, also when the commit step panics.
func (r *Redeemer) Redeem(ctx context.Context, p model.Product) (out Outcome, err error) {
	out = Outcome{ProductID: p.ID, Phase: Idle}
	if !r.begin(p.ID) {
		return out, ErrAlreadyInProgress
	}
	defer r.end(p.ID)

	if err := r.precheck(p); err != nil {
		r.log.Info("redemption refused locally", swrcache.Fields{"product": p.ID, "err": err})
		return out, err
	}

	store := r.cat.Store()
	if err := store.SetOptimistic(r.balance.Key(), swrcache.Optimistic{Pending: true}); err != nil {
		return out, err
	}
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if out.Phase != Optimistic {
			panic(rec)
		}
		out, err = r.rollback(ctx, out, fmt.Errorf("mutation: redeem %s panicked: %v", p.ID, rec))
	}()
	r.move(&out, Optimistic)

	res, err := r.commit(ctx, p.ID)
	if err != nil {
		return r.rollback(ctx, out, err)
	}
	if !res.Success {
		return r.rollback(ctx, out, ErrRedemptionRejected)
	}

	bal := model.Balance{CurrentBalance: res.NewBalance, LastUpdated: r.now()}
	if err := store.Reconcile(r.balance.Key(), bal); err != nil {
		r.log.Warn("balance reconcile failed", swrcache.Fields{"product": p.ID, "err": err})
	}
	out.Result, out.Balance = res, bal
	r.move(&out, Committed)

	r.invalidateDependents(ctx)
	r.log.Info("redemption committed", swrcache.Fields{"product": p.ID, "newBalance": res.NewBalance})
	return out, nil
}

func (r *Redeemer) precheck(p model.Product) error {
	if !p.Active {
		return ErrProductInactive
	}
	if p.Stock <= 0 {
		return ErrOutOfStock
	}
	// only a confirmed balance can refuse; pending or unknown goes to the server
	snap, ok := r.balance.Peek()
	if ok && snap.HasValue && !snap.Pending && !snap.Optimistic && snap.Value.CurrentBalance < p.PointsRequired {
		return ErrInsufficientFunds
	}
	return nil
}

func (r *Redeemer) commit(ctx context.Context, productID string) (res model.RedemptionResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("mutation: commit %s panicked: %v", productID, rec)
		}
	}()
	res, err = transport.PostJSON[model.RedemptionResult](ctx, r.cat.Client(), redeemPath,
		model.RedemptionRequest{ProductID: productID})
	if err != nil {
		return res, domainError(err)
	}
	return res, nil
}

// rollback re-syncs the balance from the server. It runs even when ctx is
// already canceled so the pending flag never outlives the call.
func (r *Redeemer) rollback(ctx context.Context, out Outcome, cause error) (Outcome, error) {
	snap, err := r.balance.Refetch(context.WithoutCancel(ctx))
	if err != nil {
		r.log.Warn("balance refetch after failed redemption failed", swrcache.Fields{"product": out.ProductID, "err": err})
	}
	if snap.HasValue {
		out.Balance = snap.Value
	}
	r.move(&out, RolledBack)
	r.log.Warn("redemption rolled back", swrcache.Fields{"product": out.ProductID, "err": cause})
	return out, cause
}

func (r *Redeemer) invalidateDependents(ctx context.Context) {
	store := r.cat.Store()
	if err := store.InvalidateResource(ctx, resource.HistoryName); err != nil {
		r.log.Warn("history invalidation failed", swrcache.Fields{"err": err})
	}
	if err := store.Invalidate(ctx, r.cat.KPISummary().Key()); err != nil {
		r.log.Warn("kpi invalidation failed", swrcache.Fields{"err": err})
	}
}

func (r *Redeemer) move(out *Outcome, to Phase) {
	from := out.Phase
	out.Phase = to
	if r.onTrans != nil {
		r.onTrans(out.ProductID, from, to)
	}
}

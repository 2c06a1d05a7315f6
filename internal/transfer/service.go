// Package transfer orchestrates one gas-free USDC transfer: wallet lookup,
// credential import, operation build, sponsorship, signing, submission and
// recording, handing the result to the confirmation poller.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/0xPexy/petpay-backend/internal/chain"
	"github.com/0xPexy/petpay-backend/internal/credential"
	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/0xPexy/petpay-backend/internal/paymaster"
	"github.com/0xPexy/petpay-backend/internal/store"
	"github.com/0xPexy/petpay-backend/internal/userop"
	"github.com/ethereum/go-ethereum/common"
)

const (
	TokenUSDC    = "USDC"
	TypeTransfer = "transfer"
)

var errNetworkMismatch = errors.New("wallet belongs to another network")

type Store interface {
	Ping(ctx context.Context) error
	GetWalletByAddress(ctx context.Context, address string) (*store.Wallet, error)
	FindLiveTransaction(ctx context.Context, key string) (*store.Transaction, error)
	CreateTransaction(ctx context.Context, tx *store.Transaction) error
}

type NonceReader interface {
	EntryPointNonce(ctx context.Context, entryPoint, sender common.Address) (*big.Int, error)
}

type Sponsor interface {
	RequestSponsorship(ctx context.Context, op *userop.UserOperation, entryPoint common.Address, chainIDHex string) (paymaster.StubData, error)
}

type Submitter interface {
	Submit(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (string, error)
}

// Watcher takes over a submitted operation until it is confirmed or failed.
type Watcher interface {
	Watch(hash string)
}

// Sink receives every recorded transaction.
type Sink interface {
	PublishTransaction(tx store.Transaction)
}

type Limiter interface {
	Allow(key string) bool
}

type Deps struct {
	Store     Store
	Networks  *network.Registry
	Chain     NonceReader
	Paymaster Sponsor
	Bundler   Submitter
	Watcher   Watcher
	Sink      Sink
	Limiter   Limiter
	// Secret decrypts wallet credentials.
	Secret string
	Logger *log.Logger
}

type Service struct {
	Deps
	now func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{Deps: d, now: time.Now}
}

type Request struct {
	FromAddress string
	ToAddress   string
	Amount      string
	Network     string
	UserID      string
	// CallerID is the authenticated user. When set, only wallets owned by
	// that user can be spent.
	CallerID string
	PetID    *string
	Type     string
	Metadata map[string]any
	// CallerKey identifies the caller for rate limiting. Empty falls back to
	// UserID, then FromAddress.
	CallerKey string
}

type Result struct {
	TransactionHash string
	Network         string
	// Amount in token base units.
	Amount    string
	Duplicate bool
	Elapsed   time.Duration
}

// run carries the per-transfer state across the stages.
type run struct {
	req     Request
	start   time.Time
	state   State
	net     network.Network
	amount  *big.Int
	wallet  *store.Wallet
	signer  *credential.Signer
	nonce   *big.Int
	key     string
	attempt bool
}

func (s *Service) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func (s *Service) Transfer(ctx context.Context, req Request) (*Result, error) {
	r := &run{req: req, start: s.now()}

	if err := s.validate(r); err != nil {
		return nil, s.fail(ctx, r, err)
	}
	r.attempt = true

	r.state = StateWalletLookup
	if err := s.Store.Ping(ctx); err != nil {
		return nil, s.failCode(ctx, r, CodeDBConnection, err)
	}
	w, err := s.Store.GetWalletByAddress(ctx, r.req.FromAddress)
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}
	if !w.IsActive {
		return nil, s.fail(ctx, r, errInactive)
	}
	if r.req.CallerID != "" && w.OwnerID != r.req.CallerID {
		return nil, s.fail(ctx, r, fmt.Errorf("%w: caller %s", errNotOwner, r.req.CallerID))
	}
	if network.Normalize(w.Network) != r.net.Name {
		return nil, s.fail(ctx, r, fmt.Errorf("%w: wallet on %s, request on %s", errNetworkMismatch, w.Network, r.net.Name))
	}
	r.wallet = w

	r.state = StateCredentialImport
	signer, err := credential.Open(w.Credential, s.Secret)
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}
	if w.OwnerAddress != "" && !strings.EqualFold(w.OwnerAddress, signer.Address().Hex()) {
		return nil, s.fail(ctx, r, fmt.Errorf("%w: stored owner %s", credential.ErrOwnerMismatch, w.OwnerAddress))
	}
	r.signer = signer

	r.state = StateBuildingOp
	sender := common.HexToAddress(w.Address)
	recipient := common.HexToAddress(r.req.ToAddress)
	nonce, err := s.Chain.EntryPointNonce(ctx, r.net.EntryPoint, sender)
	if err != nil {
		return nil, s.fail(ctx, r, fmt.Errorf("read nonce: %w", err))
	}
	r.nonce = nonce
	r.key = IdempotencyKey(sender, recipient, r.amount, nonce)
	if existing, err := s.Store.FindLiveTransaction(ctx, r.key); err != nil {
		s.logf("idempotency lookup key=%s: %v", r.key, err)
	} else if existing != nil {
		s.logf("duplicate transfer from=%s nonce=%s returns %s", w.Address, nonce, existing.TransactionHash)
		return &Result{
			TransactionHash: existing.TransactionHash,
			Network:         r.net.Name,
			Amount:          existing.Amount,
			Duplicate:       true,
			Elapsed:         s.now().Sub(r.start),
		}, nil
	}
	op, err := userop.BuildTransferOp(sender, r.net.USDC, recipient, r.amount, nonce)
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}

	r.state = StateSponsoring
	stub, err := s.Paymaster.RequestSponsorship(ctx, op, r.net.EntryPoint, r.net.ChainIDHex())
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}
	stub.Apply(op)

	r.state = StateSigning
	sig, err := signer.SignUserOp(op.Hash(r.net.EntryPoint, r.net.ChainIDBig()))
	if err != nil {
		return nil, s.fail(ctx, r, fmt.Errorf("sign: %w", err))
	}
	op.Signature = sig

	r.state = StateSubmitting
	hash, err := s.Bundler.Submit(ctx, op, r.net.EntryPoint)
	if err != nil {
		return nil, s.fail(ctx, r, err)
	}

	r.state = StateRecording
	rec := s.record(r, hash, store.StatusPending, nil)
	if err := s.Store.CreateTransaction(ctx, rec); err != nil {
		s.logf("record pending %s: %v", hash, err)
	} else if s.Sink != nil {
		s.Sink.PublishTransaction(*rec)
	}

	r.state = StatePolling
	if s.Watcher != nil {
		s.Watcher.Watch(hash)
	}

	r.state = StateDone
	elapsed := s.now().Sub(r.start)
	s.logf("submitted %s from=%s to=%s amount=%s in %s", hash, w.Address, r.req.ToAddress, r.amount, elapsed)
	return &Result{
		TransactionHash: hash,
		Network:         r.net.Name,
		Amount:          r.amount.String(),
		Elapsed:         elapsed,
	}, nil
}

func (s *Service) validate(r *run) error {
	r.state = StateValidating
	req := &r.req
	req.FromAddress = strings.TrimSpace(req.FromAddress)
	req.ToAddress = strings.TrimSpace(req.ToAddress)
	req.Amount = strings.TrimSpace(req.Amount)
	if req.FromAddress == "" || req.ToAddress == "" || req.Amount == "" {
		return errMissingFields
	}
	if !chain.IsAddress(req.FromAddress) || !chain.IsAddress(req.ToAddress) {
		return ErrInvalidAddress
	}
	if common.HexToAddress(req.ToAddress) == (common.Address{}) {
		return ErrInvalidAddress
	}
	amount, err := ToBaseUnits(req.Amount, network.USDCDecimals)
	if err != nil {
		return err
	}
	r.amount = amount
	if s.Limiter != nil && !s.Limiter.Allow(callerKey(*req)) {
		return errRateLimited
	}
	n, err := s.Networks.Resolve(req.Network)
	if err != nil {
		return err
	}
	r.net = n
	return nil
}

func callerKey(req Request) string {
	switch {
	case req.CallerKey != "":
		return req.CallerKey
	case req.CallerID != "":
		return "user:" + req.CallerID
	case req.UserID != "":
		return "user:" + req.UserID
	}
	return "addr:" + strings.ToLower(req.FromAddress)
}

func (s *Service) fail(ctx context.Context, r *run, err error) error {
	return s.failCode(ctx, r, codeFor(r.state, err), err)
}

// failCode builds the Error and, once validation has passed, leaves a failed
// record behind for audit.
func (s *Service) failCode(ctx context.Context, r *run, code Code, err error) error {
	te := &Error{Code: code, State: r.state, Elapsed: s.now().Sub(r.start), Err: err}
	s.logf("%v", te)
	if r.attempt {
		rec := s.record(r, "", store.StatusFailed, map[string]any{
			"error": err.Error(),
			"code":  string(code),
			"state": string(r.state),
		})
		if werr := s.Store.CreateTransaction(context.WithoutCancel(ctx), rec); werr != nil {
			s.logf("record failed attempt from=%s: %v", r.req.FromAddress, werr)
		} else if s.Sink != nil {
			s.Sink.PublishTransaction(*rec)
		}
	}
	return te
}

func (s *Service) record(r *run, hash, status string, extra map[string]any) *store.Transaction {
	meta := make(map[string]any, len(r.req.Metadata)+len(extra)+1)
	for k, v := range r.req.Metadata {
		meta[k] = v
	}
	for k, v := range extra {
		meta[k] = v
	}
	if r.nonce != nil {
		meta["nonce"] = r.nonce.String()
	}
	txType := r.req.Type
	if txType == "" {
		txType = TypeTransfer
	}
	amount := r.req.Amount
	if r.amount != nil {
		amount = r.amount.String()
	}
	from := r.req.FromAddress
	if r.wallet != nil {
		from = r.wallet.Address
	}
	userID := r.req.UserID
	switch {
	case r.wallet != nil:
		userID = r.wallet.OwnerID
	case r.req.CallerID != "":
		userID = r.req.CallerID
	}
	petID := r.req.PetID
	if petID == nil && r.wallet != nil {
		petID = r.wallet.PetID
	}
	return &store.Transaction{
		TransactionHash: hash,
		From:            from,
		To:              r.req.ToAddress,
		Amount:          amount,
		Token:           TokenUSDC,
		Network:         r.net.Name,
		Type:            txType,
		Status:          status,
		Timestamp:       s.now().UTC(),
		UserID:          userID,
		PetID:           petID,
		IdempotencyKey:  r.key,
		Metadata:        meta,
	}
}

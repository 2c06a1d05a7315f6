package transfer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/0xPexy/petpay-backend/internal/bundler"
	"github.com/0xPexy/petpay-backend/internal/credential"
	"github.com/0xPexy/petpay-backend/internal/network"
	"github.com/0xPexy/petpay-backend/internal/paymaster"
	"github.com/0xPexy/petpay-backend/internal/poller"
	"github.com/0xPexy/petpay-backend/internal/store"
	"github.com/0xPexy/petpay-backend/internal/userop"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	testSecret    = "master-secret"
	testSender    = "0x00000000000000000000000000000000000000A1"
	testRecipient = "0x00000000000000000000000000000000000000b2"
)

type stubChain struct {
	nonce *big.Int
	err   error
	calls int
}

func (s *stubChain) EntryPointNonce(ctx context.Context, entryPoint, sender common.Address) (*big.Int, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.nonce, nil
}

type stubPaymaster struct {
	err   error
	calls int
	last  *userop.UserOperation
}

func (s *stubPaymaster) RequestSponsorship(ctx context.Context, op *userop.UserOperation, entryPoint common.Address, chainIDHex string) (paymaster.StubData, error) {
	s.calls++
	s.last = op
	if s.err != nil {
		return paymaster.StubData{}, s.err
	}
	return paymaster.StubData{
		PaymasterAndData: common.FromHex("0x00000000000000000000000000000000000000c3"),
	}, nil
}

type stubBundler struct {
	hash  string
	err   error
	calls int
	last  *userop.UserOperation
}

func (s *stubBundler) Submit(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (string, error) {
	s.calls++
	s.last = op
	if s.err != nil {
		return "", s.err
	}
	return s.hash, nil
}

type recordingWatcher struct {
	mu     sync.Mutex
	hashes []string
}

func (w *recordingWatcher) Watch(hash string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hashes = append(w.hashes, hash)
}

// faultyStore fails selected repository calls.
type faultyStore struct {
	*store.Repository
	pingErr   error
	lookupErr error
	createErr error
}

func (s *faultyStore) Ping(ctx context.Context) error {
	if s.pingErr != nil {
		return s.pingErr
	}
	return s.Repository.Ping(ctx)
}

func (s *faultyStore) GetWalletByAddress(ctx context.Context, address string) (*store.Wallet, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.Repository.GetWalletByAddress(ctx, address)
}

func (s *faultyStore) CreateTransaction(ctx context.Context, tx *store.Transaction) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.Repository.CreateTransaction(ctx, tx)
}

// neverMined answers every receipt lookup with "not yet".
type neverMined struct{}

func (neverMined) Receipt(ctx context.Context, opHash string) (*bundler.Receipt, error) {
	return nil, nil
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

type fixture struct {
	svc       *Service
	repo      *store.Repository
	chain     *stubChain
	paymaster *stubPaymaster
	bundler   *stubBundler
	watcher   *recordingWatcher
	owner     common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := store.OpenSQLite(":memory:")
	store.AutoMigrate(db)
	repo := store.NewRepository(db)
	reg, err := network.NewRegistry(network.BaseSepolia, network.Endpoints{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	f := &fixture{
		repo:      repo,
		chain:     &stubChain{nonce: big.NewInt(0)},
		paymaster: &stubPaymaster{},
		bundler:   &stubBundler{hash: "0xop123"},
		watcher:   &recordingWatcher{},
	}
	f.svc = NewService(Deps{
		Store:     repo,
		Networks:  reg,
		Chain:     f.chain,
		Paymaster: f.paymaster,
		Bundler:   f.bundler,
		Watcher:   f.watcher,
		Secret:    testSecret,
	})
	return f
}

func (f *fixture) addWallet(t *testing.T, networkName string, withCredential bool) {
	t.Helper()
	w := &store.Wallet{
		WalletID: "wallet-1",
		Address:  testSender,
		Network:  networkName,
		Type:     store.WalletTypeUser,
		OwnerID:  "user-1",
		IsActive: true,
	}
	if withCredential {
		key, err := credential.GenerateKey()
		if err != nil {
			t.Fatalf("key: %v", err)
		}
		blob, err := credential.Seal(key, testSecret)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		w.Credential = blob
		f.owner = crypto.PubkeyToAddress(key.PublicKey)
		w.OwnerAddress = f.owner.Hex()
	}
	if err := f.repo.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
}

func transferReq() Request {
	return Request{FromAddress: testSender, ToAddress: testRecipient, Amount: "2.00", UserID: "user-1"}
}

func expectCode(t *testing.T, err error, code Code) *Error {
	t.Helper()
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *Error with %s, got %v", code, err)
	}
	if te.Code != code {
		t.Fatalf("expected %s, got %s (%v)", code, te.Code, te.Err)
	}
	return te
}

func (f *fixture) history(t *testing.T) []store.Transaction {
	t.Helper()
	txs, err := f.repo.ListTransactions(context.Background(), store.TransactionListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return txs
}

func TestTransferSuccess(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseSepolia, true)

	res, err := f.svc.Transfer(context.Background(), transferReq())
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.TransactionHash != "0xop123" || res.Amount != "2000000" || res.Duplicate {
		t.Fatalf("unexpected result %+v", res)
	}

	rec, err := f.repo.GetTransactionByHash(context.Background(), "0xop123")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Status != store.StatusPending || rec.Amount != "2000000" || rec.Token != TokenUSDC {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(f.watcher.hashes) != 1 || f.watcher.hashes[0] != "0xop123" {
		t.Fatalf("poller not started: %v", f.watcher.hashes)
	}

	op := f.bundler.last
	if !op.Sponsored() {
		t.Fatalf("submitted op lacks paymaster data")
	}
	tr, err := op.InnerTransfer()
	if err != nil || tr.Amount.Int64() != 2_000_000 || tr.Recipient != common.HexToAddress(testRecipient) {
		t.Fatalf("unexpected inner transfer %+v %v", tr, err)
	}
	// The submitted signature must be the owner's signature over the
	// sponsored operation, not the estimation stub.
	n, _ := network.NewRegistry(network.BaseSepolia, network.Endpoints{})
	hash := op.Hash(n.Default().EntryPoint, n.Default().ChainIDBig())
	sig := append([]byte(nil), op.Signature...)
	sig[64] -= 27
	pub, err := crypto.SigToPub(crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), hash.Bytes()), sig)
	if err != nil || crypto.PubkeyToAddress(*pub) != f.owner {
		t.Fatalf("signature does not recover owner: %v", err)
	}
}

func TestTransferMissingCredential(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseSepolia, false)

	_, err := f.svc.Transfer(context.Background(), transferReq())
	te := expectCode(t, err, CodeWalletDataMissing)
	if te.State != StateCredentialImport {
		t.Fatalf("unexpected state %s", te.State)
	}
	if f.chain.calls+f.paymaster.calls+f.bundler.calls != 0 {
		t.Fatalf("no upstream call expected")
	}
	txs := f.history(t)
	if len(txs) != 1 || txs[0].Status != store.StatusFailed {
		t.Fatalf("expected one failed record, got %+v", txs)
	}
}

func TestTransferPaymasterErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseSepolia, true)
	f.paymaster.err = paymaster.ErrSponsorship

	_, err := f.svc.Transfer(context.Background(), transferReq())
	te := expectCode(t, err, CodeExecutionFailed)
	if te.State != StateSponsoring || !errors.Is(err, paymaster.ErrSponsorship) {
		t.Fatalf("unexpected failure %v", te)
	}
	if f.bundler.calls != 0 {
		t.Fatalf("bundler must not be called after a sponsorship failure")
	}
	txs := f.history(t)
	if len(txs) != 1 || txs[0].Status != store.StatusFailed {
		t.Fatalf("expected one failed record, got %+v", txs)
	}
	if txs[0].Metadata["code"] != string(CodeExecutionFailed) || txs[0].Metadata["error"] == "" {
		t.Fatalf("failure metadata missing: %+v", txs[0].Metadata)
	}
}

func TestTransferNetworkMismatchMakesNoRPC(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseMainnet, true)

	_, err := f.svc.Transfer(context.Background(), transferReq())
	expectCode(t, err, CodeNetworkMismatch)
	if f.chain.calls+f.paymaster.calls+f.bundler.calls != 0 {
		t.Fatalf("expected zero RPC calls")
	}

	req := transferReq()
	req.Network = network.BaseMainnet
	_, err = f.svc.Transfer(context.Background(), req)
	te := expectCode(t, err, CodeNetworkMismatch)
	if te.State != StateValidating {
		t.Fatalf("unsupported request network must fail validation, got %s", te.State)
	}
}

func TestTransferDuplicateReturnsExistingHash(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseSepolia, true)

	first, err := f.svc.Transfer(context.Background(), transferReq())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	f.bundler.hash = "0xother"
	second, err := f.svc.Transfer(context.Background(), transferReq())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Duplicate || second.TransactionHash != first.TransactionHash {
		t.Fatalf("expected duplicate of %s, got %+v", first.TransactionHash, second)
	}
	if f.bundler.calls != 1 {
		t.Fatalf("bundler called %d times", f.bundler.calls)
	}
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		mut  func(*Request)
		code Code
	}{
		{"missing amount", func(r *Request) { r.Amount = "" }, CodeMissingFields},
		{"missing to", func(r *Request) { r.ToAddress = " " }, CodeMissingFields},
		{"bad address", func(r *Request) { r.ToAddress = "0x1234" }, CodeInvalidAddress},
		{"zero recipient", func(r *Request) { r.ToAddress = "0x0000000000000000000000000000000000000000" }, CodeInvalidAddress},
		{"bad amount", func(r *Request) { r.Amount = "-3" }, CodeInvalidAmount},
		{"amount beyond uint256", func(r *Request) { r.Amount = "1e80" }, CodeInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := transferReq()
			tc.mut(&req)
			_, err := f.svc.Transfer(context.Background(), req)
			expectCode(t, err, tc.code)
		})
	}
	if len(f.history(t)) != 0 {
		t.Fatalf("validation failures must not be recorded")
	}
}

func TestTransferRateLimited(t *testing.T) {
	f := newFixture(t)
	f.svc.Limiter = denyAll{}
	_, err := f.svc.Transfer(context.Background(), transferReq())
	expectCode(t, err, CodeRateLimited)
}

func TestTransferUnknownWallet(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Transfer(context.Background(), transferReq())
	expectCode(t, err, CodeWalletNotFound)
}

func TestTransferBundlerFailure(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseSepolia, true)
	f.bundler.err = errors.New("bundler: submission rejected")

	_, err := f.svc.Transfer(context.Background(), transferReq())
	te := expectCode(t, err, CodeExecutionFailed)
	if te.State != StateSubmitting {
		t.Fatalf("unexpected state %s", te.State)
	}
	if len(f.watcher.hashes) != 0 {
		t.Fatalf("failed submission must not be polled")
	}
}

func TestTransferRecordingFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseSepolia, true)
	f.svc.Store = &faultyStore{Repository: f.repo, createErr: errors.New("disk full")}

	res, err := f.svc.Transfer(context.Background(), transferReq())
	if err != nil {
		t.Fatalf("recording failure must not fail the transfer: %v", err)
	}
	if res.TransactionHash != "0xop123" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(f.watcher.hashes) != 1 {
		t.Fatalf("operation must still be polled, got %v", f.watcher.hashes)
	}
	if len(f.history(t)) != 0 {
		t.Fatalf("nothing should have been recorded")
	}
}

func TestTransferStoreAndCredentialFailures(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
		code  Code
		state State
	}{
		{
			name: "db unreachable",
			setup: func(t *testing.T, f *fixture) {
				f.addWallet(t, network.BaseSepolia, true)
				f.svc.Store = &faultyStore{Repository: f.repo, pingErr: errors.New("connection refused")}
			},
			code:  CodeDBConnection,
			state: StateWalletLookup,
		},
		{
			name: "wallet query fails",
			setup: func(t *testing.T, f *fixture) {
				f.addWallet(t, network.BaseSepolia, true)
				f.svc.Store = &faultyStore{Repository: f.repo, lookupErr: errors.New("database is locked")}
			},
			code:  CodeDBQuery,
			state: StateWalletLookup,
		},
		{
			name: "credential owner mismatch",
			setup: func(t *testing.T, f *fixture) {
				f.addWallet(t, network.BaseSepolia, true)
				w, err := f.repo.GetWalletByAddress(context.Background(), testSender)
				if err != nil {
					t.Fatalf("load wallet: %v", err)
				}
				other, err := credential.GenerateKey()
				if err != nil {
					t.Fatalf("key: %v", err)
				}
				blob, err := credential.Seal(other, testSecret)
				if err != nil {
					t.Fatalf("seal: %v", err)
				}
				if err := f.repo.UpdateWalletCredential(context.Background(), w.WalletID, blob); err != nil {
					t.Fatalf("swap credential: %v", err)
				}
			},
			code:  CodeWalletImport,
			state: StateCredentialImport,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(t, f)
			_, err := f.svc.Transfer(context.Background(), transferReq())
			te := expectCode(t, err, tc.code)
			if te.State != tc.state {
				t.Fatalf("expected state %s, got %s", tc.state, te.State)
			}
			if f.chain.calls+f.paymaster.calls+f.bundler.calls != 0 {
				t.Fatalf("no upstream call expected")
			}
		})
	}
}

func TestTransferRejectsWalletOfAnotherUser(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseSepolia, true)

	req := transferReq()
	req.UserID = "user-2"
	req.CallerID = "user-2"
	_, err := f.svc.Transfer(context.Background(), req)
	expectCode(t, err, CodeWalletNotFound)
	if f.chain.calls+f.paymaster.calls+f.bundler.calls != 0 {
		t.Fatalf("no upstream call expected")
	}
	txs := f.history(t)
	if len(txs) != 1 || txs[0].Status != store.StatusFailed || txs[0].UserID != "user-2" {
		t.Fatalf("expected one failed attempt by user-2, got %+v", txs)
	}
}

func TestTransferRecordsWalletOwner(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseSepolia, true)

	req := transferReq()
	req.UserID = "user-2"
	if _, err := f.svc.Transfer(context.Background(), req); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	rec, err := f.repo.GetTransactionByHash(context.Background(), "0xop123")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.UserID != "user-1" {
		t.Fatalf("record must carry the wallet owner, got %q", rec.UserID)
	}
}

func TestTransferRetriesAfterOperationDropped(t *testing.T) {
	f := newFixture(t)
	f.addWallet(t, network.BaseSepolia, true)
	ctx := context.Background()
	p := poller.New(ctx, poller.Config{Interval: time.Millisecond, MaxAttempts: 3}, neverMined{}, f.repo, nil, nil)
	f.svc.Watcher = p

	if _, err := f.svc.Transfer(ctx, transferReq()); err != nil {
		t.Fatalf("first: %v", err)
	}
	p.Wait()

	// The nonce did not move, so the retry carries the same idempotency key.
	f.bundler.hash = "0xop456"
	second, err := f.svc.Transfer(ctx, transferReq())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	p.Wait()
	if second.Duplicate || second.TransactionHash != "0xop456" {
		t.Fatalf("retry must reach the bundler, got %+v", second)
	}
	if f.bundler.calls != 2 {
		t.Fatalf("bundler called %d times", f.bundler.calls)
	}
	first, err := f.repo.GetTransactionByHash(ctx, "0xop123")
	if err != nil {
		t.Fatalf("load first: %v", err)
	}
	if first.Status != store.StatusFailed {
		t.Fatalf("dropped operation should be failed, got %s", first.Status)
	}
}

package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/model"
)

var addrX = common.HexToAddress("0x1111111111111111111111111111111111111111")
var addrY = common.HexToAddress("0x2222222222222222222222222222222222222222")

func deposit(owner common.Address, assets, shares int64) model.DepositEvent {
	return model.DepositEvent{Owner: owner, Assets: big.NewInt(assets), Shares: big.NewInt(shares)}
}

func withdraw(owner common.Address, assets, shares int64) model.WithdrawEvent {
	return model.WithdrawEvent{Owner: owner, Assets: big.NewInt(assets), Shares: big.NewInt(shares)}
}

// Deposit of 100 at T1 then withdrawal of 30 at T2: the position must
// carry both totals, net 70, and the activity window [T1,T2].
func TestDepositThenWithdraw(t *testing.T) {
	l := New()
	l.ApplyDeposit(deposit(addrX, 100, 100), 1000)
	l.ApplyWithdraw(withdraw(addrX, 30, 30), 2000)

	position, ok := l.Get(addrX)
	if !ok {
		t.Fatalf("position missing")
	}
	if position.TotalDeposits.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("total deposits mismatch: %s", position.TotalDeposits)
	}
	if position.TotalWithdrawals.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("total withdrawals mismatch: %s", position.TotalWithdrawals)
	}
	if position.NetPosition().Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("net position mismatch: %s", position.NetPosition())
	}
	if position.FirstActivity != 1000 || position.LastActivity != 2000 {
		t.Fatalf("activity window mismatch: [%d,%d]", position.FirstActivity, position.LastActivity)
	}
	if position.DepositCount != 1 || position.WithdrawalCount != 1 {
		t.Fatalf("counts mismatch: %+v", position)
	}
}

func TestWithdrawDoesNotMoveFirstActivityBackward(t *testing.T) {
	l := New()
	l.ApplyDeposit(deposit(addrX, 100, 100), 5000)
	l.ApplyWithdraw(withdraw(addrX, 10, 10), 1000)

	position, _ := l.Get(addrX)
	if position.FirstActivity != 5000 {
		t.Fatalf("withdrawal moved first activity: %d", position.FirstActivity)
	}
	if position.LastActivity != 5000 {
		t.Fatalf("last activity mismatch: %d", position.LastActivity)
	}
}

// Out-of-order replay: a burn applied before its mint drives NetShares
// negative; totals recombine once all events arrive.
func TestOutOfOrderNetSharesTransientlyNegative(t *testing.T) {
	l := New()
	l.ApplyWithdraw(withdraw(addrX, 60, 60), 3000)

	position, _ := l.Get(addrX)
	if position.NetShares.Cmp(big.NewInt(-60)) != 0 {
		t.Fatalf("expected negative net shares, got %s", position.NetShares)
	}

	l.ApplyDeposit(deposit(addrX, 100, 100), 1000)
	position, _ = l.Get(addrX)
	if position.NetShares.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("net shares did not recombine: %s", position.NetShares)
	}
	if position.FirstActivity != 1000 {
		t.Fatalf("late deposit should move first activity earlier: %d", position.FirstActivity)
	}
}

// Applying events to one ledger vs. splitting them over two ledgers and
// merging must produce identical aggregate totals.
func TestMergeMatchesSingleLedger(t *testing.T) {
	combined := New()
	combined.ApplyDeposit(deposit(addrX, 100, 100), 1000)
	combined.ApplyDeposit(deposit(addrY, 50, 50), 1100)
	combined.ApplyWithdraw(withdraw(addrX, 40, 40), 1200)

	left := New()
	left.ApplyDeposit(deposit(addrX, 100, 100), 1000)
	right := New()
	right.ApplyDeposit(deposit(addrY, 50, 50), 1100)
	right.ApplyWithdraw(withdraw(addrX, 40, 40), 1200)
	left.Merge(right)

	wantSnapshot := combined.Snapshot()
	gotSnapshot := left.Snapshot()
	if len(wantSnapshot) != len(gotSnapshot) {
		t.Fatalf("snapshot lengths differ: %d != %d", len(wantSnapshot), len(gotSnapshot))
	}
	for i := range wantSnapshot {
		want, got := wantSnapshot[i], gotSnapshot[i]
		if want.Address != got.Address ||
			want.TotalDeposits.Cmp(got.TotalDeposits) != 0 ||
			want.TotalWithdrawals.Cmp(got.TotalWithdrawals) != 0 ||
			want.NetShares.Cmp(got.NetShares) != 0 ||
			want.DepositCount != got.DepositCount ||
			want.WithdrawalCount != got.WithdrawalCount ||
			want.FirstActivity != got.FirstActivity ||
			want.LastActivity != got.LastActivity {
			t.Fatalf("merged position differs at %d: %+v != %+v", i, want, got)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l := New()
	l.ApplyDeposit(deposit(addrX, 100, 100), 1000)

	snapshot := l.Snapshot()
	snapshot[0].TotalDeposits.SetInt64(0)

	position, _ := l.Get(addrX)
	if position.TotalDeposits.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("snapshot aliases ledger state")
	}
}

func TestSnapshotOrderedByAddress(t *testing.T) {
	l := New()
	l.ApplyDeposit(deposit(addrY, 1, 1), 1)
	l.ApplyDeposit(deposit(addrX, 1, 1), 1)

	snapshot := l.Snapshot()
	if len(snapshot) != 2 || snapshot[0].Address != addrX || snapshot[1].Address != addrY {
		t.Fatalf("snapshot not ordered: %+v", snapshot)
	}
}

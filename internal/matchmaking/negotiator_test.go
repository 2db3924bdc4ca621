package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rl-arena/stake-pong-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	connID  string
	msgType string
	payload interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeNotifier) SendToConn(connID, msgType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{connID: connID, msgType: msgType, payload: payload})
}

func (f *fakeNotifier) messages(connID, msgType string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []interface{}
	for _, m := range f.sent {
		if m.connID == connID && m.msgType == msgType {
			out = append(out, m.payload)
		}
	}
	return out
}

func (f *fakeNotifier) count(msgType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, m := range f.sent {
		if m.msgType == msgType {
			n++
		}
	}
	return n
}

type createdSession struct {
	matchID, playerA, playerB, stake string
}

type fakeProvisioner struct {
	mu      sync.Mutex
	created []createdSession
	err     error
}

func (f *fakeProvisioner) CreateSession(matchID, playerA, playerB, stake string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, createdSession{matchID, playerA, playerB, stake})
	return nil
}

type fakeSettlement struct {
	mu        sync.Mutex
	provision []string
}

func (f *fakeSettlement) ProvisionAsync(matchID, playerA, playerB, stake string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provision = append(f.provision, matchID)
}

type negotiatorFixture struct {
	negotiator  *Negotiator
	notifier    *fakeNotifier
	provisioner *fakeProvisioner
	settlement  *fakeSettlement
}

func setupNegotiator(t *testing.T) *negotiatorFixture {
	f := &negotiatorFixture{
		notifier:    &fakeNotifier{},
		provisioner: &fakeProvisioner{},
		settlement:  &fakeSettlement{},
	}
	f.negotiator = NewNegotiator(f.notifier, f.provisioner, f.settlement, nil, zap.NewNop(), Config{
		SessionEndpoint: "ws://localhost:8080/api/v1/ws/session",
		PendingTimeout:  time.Minute,
	})

	seq := 0
	f.negotiator.newMatchID = func() string {
		seq++
		return fmt.Sprintf("match_%d", seq)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go f.negotiator.Run(ctx)
	t.Cleanup(cancel)

	return f
}

func stake(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *negotiatorFixture) join(t *testing.T, connID, address, amount string) int {
	pos, err := f.negotiator.JoinQueue(connID, address, stake(amount))
	require.NoError(t, err)
	return pos
}

func (f *negotiatorFixture) matchFound(t *testing.T, connID string) models.MatchFoundMessage {
	msgs := f.notifier.messages(connID, models.EventMatchFound)
	require.Len(t, msgs, 1, "expected one match_found for %s", connID)
	return msgs[0].(models.MatchFoundMessage)
}

func TestNegotiator_PairsInArrivalOrder(t *testing.T) {
	f := setupNegotiator(t)

	assert.Equal(t, 1, f.join(t, "c1", "0xAAA", "5"))
	assert.Equal(t, 2, f.join(t, "c2", "0xBBB", "5"))
	assert.Equal(t, 1, f.join(t, "c3", "0xCCC", "5"))

	first := f.matchFound(t, "c1")
	second := f.matchFound(t, "c2")

	assert.Equal(t, first.MatchID, second.MatchID)
	assert.Equal(t, "0xBBB", first.Opponent)
	assert.Equal(t, "0xAAA", second.Opponent)
	assert.Equal(t, "playerA", first.Side)
	assert.Equal(t, "playerB", second.Side)
	assert.Equal(t, "5", first.Stake)

	assert.Empty(t, f.notifier.messages("c3", models.EventMatchFound))

	queued, err := f.negotiator.QueuedEntries("5")
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "c3", queued[0].ConnID)

	pending, found, err := f.negotiator.PendingMatch(first.MatchID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.PendingStatusAwaitingStakes, pending.Status)
	assert.Equal(t, [2]bool{false, false}, pending.Confirmed)
}

func TestNegotiator_QueueJoinedPrecedesMatchFound(t *testing.T) {
	f := setupNegotiator(t)
	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "5")

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()

	var c2Types []string
	for _, m := range f.notifier.sent {
		if m.connID == "c2" {
			c2Types = append(c2Types, m.msgType)
		}
	}
	assert.Equal(t, []string{models.EventQueueJoined, models.EventMatchFound}, c2Types)
}

func TestNegotiator_StakeTiersAreNormalized(t *testing.T) {
	f := setupNegotiator(t)
	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "5.00")

	assert.Equal(t, "5", f.matchFound(t, "c1").Stake)
}

func TestNegotiator_TiersAreIndependent(t *testing.T) {
	f := setupNegotiator(t)
	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "10")

	assert.Zero(t, f.notifier.count(models.EventMatchFound))

	stats, err := f.negotiator.Stats()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"5": 1, "10": 1}, stats.Queues)
}

func TestNegotiator_SelfMatchRequeuesInOrder(t *testing.T) {
	f := setupNegotiator(t)
	f.join(t, "c1", "0xAbC", "5")
	f.join(t, "c2", "0xaBc", "5")

	assert.Zero(t, f.notifier.count(models.EventMatchFound))

	queued, err := f.negotiator.QueuedEntries("5")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, connIDs(queued))

	stats, err := f.negotiator.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.PendingMatches)
}

func TestNegotiator_BacklogFormsMultipleMatches(t *testing.T) {
	f := setupNegotiator(t)

	// 큐를 직접 채워 백로그를 만든 뒤 다음 등록에서 한 번에 페어링
	require.NoError(t, f.negotiator.do(func() {
		f.negotiator.queues.Enqueue(entry("c1", "0x1", "5"))
		f.negotiator.queues.Enqueue(entry("c2", "0x2", "5"))
		f.negotiator.queues.Enqueue(entry("c3", "0x3", "5"))
	}))
	f.join(t, "c4", "0x4", "5")

	assert.Equal(t, 4, f.notifier.count(models.EventMatchFound))
	assert.Equal(t, "0x2", f.matchFound(t, "c1").Opponent)
	assert.Equal(t, "0x4", f.matchFound(t, "c3").Opponent)

	stats, err := f.negotiator.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingMatches)
	assert.Empty(t, stats.Queues)
}

func TestNegotiator_JoinQueueValidation(t *testing.T) {
	f := setupNegotiator(t)

	_, err := f.negotiator.JoinQueue("c1", "  ", stake("5"))
	assert.ErrorIs(t, err, ErrMissingAddress)

	_, err = f.negotiator.JoinQueue("c1", "0xAAA", stake("0"))
	assert.ErrorIs(t, err, ErrInvalidStake)

	_, err = f.negotiator.JoinQueue("c1", "0xAAA", stake("-5"))
	assert.ErrorIs(t, err, ErrInvalidStake)

	assert.Zero(t, f.notifier.count(models.EventQueueJoined))
}

func TestNegotiator_JoinWhileMatchedIsRejected(t *testing.T) {
	f := setupNegotiator(t)
	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "5")

	_, err := f.negotiator.JoinQueue("c1", "0xAAA", stake("10"))
	assert.ErrorIs(t, err, ErrAlreadyMatched)

	// 만료되면 다시 대기열에 들어갈 수 있다
	expired, err := f.negotiator.ExpireStale(time.Now().Add(24 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	_, err = f.negotiator.JoinQueue("c1", "0xAAA", stake("10"))
	assert.NoError(t, err)
}

func TestNegotiator_ConfirmStakeHandshake(t *testing.T) {
	f := setupNegotiator(t)
	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "5")
	matchID := f.matchFound(t, "c1").MatchID

	require.NoError(t, f.negotiator.ConfirmStake("c1", matchID, "0xtx1"))

	// 상대에게만 opponent_staked
	staked := f.notifier.messages("c2", models.EventOpponentStaked)
	require.Len(t, staked, 1)
	assert.Equal(t, matchID, staked[0].(models.OpponentStakedMessage).MatchID)
	assert.Empty(t, f.notifier.messages("c1", models.EventOpponentStaked))
	assert.Zero(t, f.notifier.count(models.EventGameReady))

	// 같은 쪽 중복 확인은 no-op
	require.NoError(t, f.negotiator.ConfirmStake("c1", matchID, "0xtx1"))
	assert.Len(t, f.notifier.messages("c2", models.EventOpponentStaked), 1)
	assert.Zero(t, f.notifier.count(models.EventGameReady))

	pending, found, err := f.negotiator.PendingMatch(matchID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, [2]bool{true, false}, pending.Confirmed)

	require.NoError(t, f.negotiator.ConfirmStake("c2", matchID, "0xtx2"))

	for _, conn := range []string{"c1", "c2"} {
		ready := f.notifier.messages(conn, models.EventGameReady)
		require.Len(t, ready, 1)
		msg := ready[0].(models.GameReadyMessage)
		assert.Equal(t, matchID, msg.MatchID)
		assert.Equal(t, "ws://localhost:8080/api/v1/ws/session", msg.SessionEndpoint)
	}

	require.Len(t, f.provisioner.created, 1)
	assert.Equal(t, createdSession{matchID, "0xAAA", "0xBBB", "5"}, f.provisioner.created[0])
	assert.Equal(t, []string{matchID}, f.settlement.provision)

	// PendingMatch는 폐기됨
	_, found, err = f.negotiator.PendingMatch(matchID)
	require.NoError(t, err)
	assert.False(t, found)

	// 폐기 후 확인은 무시
	require.NoError(t, f.negotiator.ConfirmStake("c2", matchID, "0xtx2"))
	assert.Equal(t, 2, f.notifier.count(models.EventGameReady))
	assert.Len(t, f.provisioner.created, 1)
}

func TestNegotiator_ConfirmUnknownMatchIsIgnored(t *testing.T) {
	f := setupNegotiator(t)

	err := f.negotiator.ConfirmStake("c1", "match_missing", "0xtx")
	assert.NoError(t, err)
	assert.Empty(t, f.notifier.sent)
}

func TestNegotiator_ConfirmByNonMember(t *testing.T) {
	f := setupNegotiator(t)
	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "5")
	matchID := f.matchFound(t, "c1").MatchID

	err := f.negotiator.ConfirmStake("intruder", matchID, "0xtx")
	assert.ErrorIs(t, err, ErrNotInMatch)

	pending, _, err := f.negotiator.PendingMatch(matchID)
	require.NoError(t, err)
	assert.Equal(t, [2]bool{false, false}, pending.Confirmed)
}

func TestNegotiator_SessionCreationFailure(t *testing.T) {
	f := setupNegotiator(t)
	f.provisioner.err = fmt.Errorf("duplicate")

	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "5")
	matchID := f.matchFound(t, "c1").MatchID

	require.NoError(t, f.negotiator.ConfirmStake("c1", matchID, "p1"))
	require.NoError(t, f.negotiator.ConfirmStake("c2", matchID, "p2"))

	assert.Zero(t, f.notifier.count(models.EventGameReady))
	assert.Len(t, f.notifier.messages("c1", models.EventError), 1)
	assert.Len(t, f.notifier.messages("c2", models.EventError), 1)
	assert.Empty(t, f.settlement.provision)
}

func TestNegotiator_LeaveAndDisconnect(t *testing.T) {
	f := setupNegotiator(t)
	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "10")

	require.NoError(t, f.negotiator.LeaveQueue("c1"))
	assert.Len(t, f.notifier.messages("c1", models.EventQueueLeft), 1)

	require.NoError(t, f.negotiator.Disconnect("c2"))

	stats, err := f.negotiator.Stats()
	require.NoError(t, err)
	assert.Empty(t, stats.Queues)

	// 떠난 플레이어와는 매칭되지 않음
	f.join(t, "c3", "0xCCC", "5")
	assert.Zero(t, f.notifier.count(models.EventMatchFound))
}

func TestNegotiator_ExpireStaleRequeuesConfirmedSide(t *testing.T) {
	f := setupNegotiator(t)
	start := time.Now()
	f.negotiator.now = func() time.Time { return start }

	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "5")
	matchID := f.matchFound(t, "c1").MatchID
	require.NoError(t, f.negotiator.ConfirmStake("c1", matchID, "p1"))

	// timeout 이전에는 만료되지 않음
	expired, err := f.negotiator.ExpireStale(start.Add(30 * time.Second))
	require.NoError(t, err)
	assert.Zero(t, expired)

	expired, err = f.negotiator.ExpireStale(start.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	c1 := f.notifier.messages("c1", models.EventMatchExpired)
	require.Len(t, c1, 1)
	assert.True(t, c1[0].(models.MatchExpiredMessage).Requeued)

	c2 := f.notifier.messages("c2", models.EventMatchExpired)
	require.Len(t, c2, 1)
	assert.False(t, c2[0].(models.MatchExpiredMessage).Requeued)

	queued, err := f.negotiator.QueuedEntries("5")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, connIDs(queued))

	// 확인하지 않은 쪽은 다시 큐에 들어갈 수 있음
	f.join(t, "c2", "0xBBB", "5")
	assert.Len(t, f.notifier.messages("c1", models.EventMatchFound), 2)
}

func TestNegotiator_ExpireSkipsDisconnectedSide(t *testing.T) {
	f := setupNegotiator(t)
	start := time.Now()
	f.negotiator.now = func() time.Time { return start }

	f.join(t, "c1", "0xAAA", "5")
	f.join(t, "c2", "0xBBB", "5")
	matchID := f.matchFound(t, "c1").MatchID
	require.NoError(t, f.negotiator.ConfirmStake("c1", matchID, "p1"))
	require.NoError(t, f.negotiator.Disconnect("c1"))

	expired, err := f.negotiator.ExpireStale(start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Empty(t, f.notifier.messages("c1", models.EventMatchExpired))
	queued, err := f.negotiator.QueuedEntries("5")
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestNegotiator_StoppedReturnsError(t *testing.T) {
	n := NewNegotiator(&fakeNotifier{}, &fakeProvisioner{}, nil, nil, zap.NewNop(), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	_, err := n.JoinQueue("c1", "0xAAA", stake("5"))
	assert.ErrorIs(t, err, ErrStopped)
}

func TestGenerateMatchID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := generateMatchID()
		assert.Regexp(t, `^match_\d+_[0-9a-f]{9}$`, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

package payday

import (
	"context"
	"testing"
	"time"

	"github.com/gratipay/payday/internal/models"
	"github.com/gratipay/payday/internal/notify"
	"github.com/gratipay/payday/internal/processor"
	"github.com/stretchr/testify/require"
)

func TestStartTwiceReturnsSameOpenPayday(t *testing.T) {
	conn := openTestDB(t)
	runner := newTestRunner(t, conn, processor.NewSandbox())
	ctx := context.Background()

	first, errFirst := runner.Start(ctx)
	require.NoError(t, errFirst)

	second, errSecond := runner.Start(ctx)
	require.NoError(t, errSecond)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.Stage, second.Stage)
}

func TestEndWithoutOpenPaydayIsDistinctError(t *testing.T) {
	conn := openTestDB(t)
	runner := newTestRunner(t, conn, processor.NewSandbox())
	ctx := context.Background()

	payday, errStart := runner.Start(ctx)
	require.NoError(t, errStart)
	require.NoError(t, runner.End(ctx, payday))

	require.ErrorIs(t, runner.End(ctx, payday), ErrNoOpenPayday)
}

func TestRunResumesFromRecordedStage(t *testing.T) {
	conn := openTestDB(t)
	sandbox := processor.NewSandbox()
	runner := newTestRunner(t, conn, sandbox)
	ctx := context.Background()

	// A pledge that would normally produce a hold and a payment.
	payer := seedParticipant(t, conn, "alice", "0.00")
	seedCard(t, conn, payer.ID)
	owner := seedParticipant(t, conn, "bob", "0.00")
	team := seedTeam(t, conn, "widgets", owner.ID, "0.00", "0.00")
	seedPledge(t, conn, payer.ID, team.ID, "10.00", "0.00")

	// Simulate a crash after payin committed but before stats: the open
	// payday already records the payin stage as done.
	open := models.Payday{TsStart: time.Now().UTC(), Stage: int(StagePayinDone)}
	require.NoError(t, conn.Create(&open).Error)

	require.NoError(t, runner.Run(ctx))

	// Payin must not have been redone: no holds were touched and no money
	// moved.
	require.Equal(t, 0, sandbox.OpenHoldCount())
	require.Empty(t, paymentRows(t, conn, open.ID))
	requireAmount(t, "0.00", participantBalance(t, conn, payer.ID))

	var closed models.Payday
	require.NoError(t, conn.First(&closed, open.ID).Error)
	require.NotNil(t, closed.TsEnd)
	require.Equal(t, int(StageStatsDone), closed.Stage)
}

func TestRunFullCycle(t *testing.T) {
	conn := openTestDB(t)
	sandbox := processor.NewSandbox()
	runner := newTestRunner(t, conn, sandbox, WithNotifier(notify.NewGormNotifier(conn)))
	ctx := context.Background()

	payer := seedParticipant(t, conn, "alice", "0.00")
	seedCard(t, conn, payer.ID)
	owner := seedParticipant(t, conn, "bob", "0.00")
	team := seedTeam(t, conn, "widgets", owner.ID, "0.00", "0.00")
	pledge := seedPledge(t, conn, payer.ID, team.ID, "10.00", "0.00")

	require.NoError(t, runner.Run(ctx))

	// The $10.00 shortfall was upcharged to a $10.61 hold and captured for
	// exactly the deficit.
	captured, ok := sandbox.Captured("sandbox-1")
	require.True(t, ok, "the hold should have been captured")
	requireAmount(t, "10.61", captured)
	require.Equal(t, 0, sandbox.OpenHoldCount())

	requireAmount(t, "0.00", participantBalance(t, conn, payer.ID))
	requireAmount(t, "10.00", participantBalance(t, conn, owner.ID))
	requireAmount(t, "0.00", teamBalance(t, conn, team.ID))
	requireAmount(t, "0.00", instructionDue(t, conn, pledge.ID))

	var payday models.Payday
	require.NoError(t, conn.Where("ts_end IS NOT NULL").First(&payday).Error)
	require.Equal(t, int(StageStatsDone), payday.Stage)
	requireAmount(t, "10.00", payday.Volume)
	require.Equal(t, 2, payday.NActiveUsers)
	require.Equal(t, 1, payday.NTeams)

	payments := paymentRows(t, conn, payday.ID)
	require.Len(t, payments, 2)
	require.Equal(t, models.PaymentToTeam, payments[0].Direction)
	require.Equal(t, payer.ID, payments[0].ParticipantID)
	requireAmount(t, "10.00", payments[0].Amount)
	require.Equal(t, models.PaymentToParticipant, payments[1].Direction)
	require.Equal(t, owner.ID, payments[1].ParticipantID)
	requireAmount(t, "10.00", payments[1].Amount)

	var exchanges []models.Exchange
	require.NoError(t, conn.Find(&exchanges).Error)
	require.Len(t, exchanges, 1)
	require.Equal(t, models.ExchangeSucceeded, exchanges[0].Status)
	requireAmount(t, "10.00", exchanges[0].Amount)
	requireAmount(t, "0.61", exchanges[0].Fee)

	var notifications []models.Notification
	require.NoError(t, conn.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Equal(t, payer.ID, notifications[0].ParticipantID)
	require.Equal(t, notify.TemplateChargeSucceeded, notifications[0].Template)
}

func TestRunSubMinimumDefersThenCharges(t *testing.T) {
	conn := openTestDB(t)
	sandbox := processor.NewSandbox()
	runner := newTestRunner(t, conn, sandbox)
	ctx := context.Background()

	payer := seedParticipant(t, conn, "alice", "0.00")
	seedCard(t, conn, payer.ID)
	owner := seedParticipant(t, conn, "bob", "0.00")
	team := seedTeam(t, conn, "widgets", owner.ID, "0.00", "0.00")
	pledge := seedPledge(t, conn, payer.ID, team.ID, "5.00", "0.00")

	// First cycle: $5.00 is below the minimum charge. No hold, no movement,
	// due carries the pledge forward.
	require.NoError(t, runner.Run(ctx))
	require.Equal(t, 0, sandbox.OpenHoldCount())
	requireAmount(t, "5.00", instructionDue(t, conn, pledge.ID))
	requireAmount(t, "0.00", participantBalance(t, conn, payer.ID))
	requireAmount(t, "0.00", participantBalance(t, conn, owner.ID))
	requireAmount(t, "0.00", teamBalance(t, conn, team.ID))

	// Second cycle: amount + due = $10.00 clears the minimum. The charge
	// covers both and due resets.
	require.NoError(t, runner.Run(ctx))
	requireAmount(t, "0.00", instructionDue(t, conn, pledge.ID))
	requireAmount(t, "0.00", participantBalance(t, conn, payer.ID))
	requireAmount(t, "10.00", participantBalance(t, conn, owner.ID))
	require.Equal(t, 0, sandbox.OpenHoldCount())
}

func TestStageStrings(t *testing.T) {
	require.Equal(t, "not-started", StageNotStarted.String())
	require.Equal(t, "payin-done", StagePayinDone.String())
	require.Equal(t, "stats-done", StageStatsDone.String())
	require.False(t, Stage(7).Valid())
}

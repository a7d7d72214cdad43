package payday

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gratipay/payday/internal/models"
	"github.com/gratipay/payday/internal/processor"
	"github.com/stretchr/testify/require"
)

func TestSettleHoldVoidsUnused(t *testing.T) {
	conn := openTestDB(t)
	sandbox := processor.NewSandbox()
	runner := newTestRunner(t, conn, sandbox)
	ctx := context.Background()

	hold := sandbox.Seed(1, d("10.61"))
	p := &account{id: 1, newBalance: d("3.00")}

	result := runner.settleHold(ctx, p, hold)
	require.NoError(t, result.err)
	require.False(t, result.captured)
	require.True(t, sandbox.Voided(hold.ID))
}

func TestSettleHoldRefusesOverCapture(t *testing.T) {
	conn := openTestDB(t)
	sandbox := processor.NewSandbox()
	runner := newTestRunner(t, conn, sandbox)
	ctx := context.Background()

	hold := sandbox.Seed(1, d("10.61"))
	p := &account{id: 1, newBalance: d("-20.00")}

	result := runner.settleHold(ctx, p, hold)
	require.Error(t, result.err)

	var capErr *CaptureError
	require.ErrorAs(t, result.err, &capErr)
	require.Equal(t, uint64(1), capErr.ParticipantID)
	require.Equal(t, hold.ID, capErr.HoldID)
	requireAmount(t, "10.61", capErr.Authorized)

	// The hold is left untouched for manual review.
	require.False(t, sandbox.Voided(hold.ID))
	require.Equal(t, 1, sandbox.OpenHoldCount())
}

func TestCaptureFailureAbortsRunAndDumpsPayments(t *testing.T) {
	conn := openTestDB(t)
	sandbox := processor.NewSandbox()
	dumpDir := t.TempDir()
	runner := newTestRunner(t, conn, sandbox, WithDumpDir(dumpDir))
	ctx := context.Background()

	payer := seedParticipant(t, conn, "alice", "0.00")
	card := seedCard(t, conn, payer.ID)
	owner := seedParticipant(t, conn, "bob", "0.00")
	team := seedTeam(t, conn, "widgets", owner.ID, "0.00", "0.00")
	pledge := seedPledge(t, conn, payer.ID, team.ID, "10.00", "0.00")

	sandbox.CaptureErrs = map[uint64]error{payer.ID: errors.New("gateway timeout")}

	errRun := runner.Run(ctx)
	require.Error(t, errRun)
	var capErr *CaptureError
	require.ErrorAs(t, errRun, &capErr)
	require.Equal(t, payer.ID, capErr.ParticipantID)

	// Nothing committed.
	requireAmount(t, "0.00", participantBalance(t, conn, payer.ID))
	requireAmount(t, "0.00", participantBalance(t, conn, owner.ID))
	requireAmount(t, "0.00", teamBalance(t, conn, team.ID))
	requireAmount(t, "0.00", instructionDue(t, conn, pledge.ID))

	// The payday is still open for a later resumed run.
	var open models.Payday
	require.NoError(t, conn.Where("ts_end IS NULL").First(&open).Error)
	require.Equal(t, int(StageNotStarted), open.Stage)

	// The failed attempt is on the books and the route carries the error.
	var exchanges []models.Exchange
	require.NoError(t, conn.Find(&exchanges).Error)
	require.Len(t, exchanges, 1)
	require.Equal(t, models.ExchangeFailed, exchanges[0].Status)
	require.Equal(t, payer.ID, exchanges[0].ParticipantID)
	require.NotNil(t, exchanges[0].PaydayID)
	require.Equal(t, open.ID, *exchanges[0].PaydayID)

	var route models.ExchangeRoute
	require.NoError(t, conn.First(&route, card.ID).Error)
	require.NotEmpty(t, route.Error)

	// The computed payments were dumped for manual reconciliation.
	matches, errGlob := filepath.Glob(filepath.Join(dumpDir, "*_payments.csv"))
	require.NoError(t, errGlob)
	require.Len(t, matches, 1)
	raw, errRead := os.ReadFile(matches[0])
	require.NoError(t, errRead)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Equal(t, "payday_id,participant_id,team_id,direction,amount", lines[0])
	require.Len(t, lines, 3) // header, to-team, remainder to owner
}

func TestCommitRejectsConcurrentOverdraft(t *testing.T) {
	conn := openTestDB(t)
	runner := newTestRunner(t, conn, processor.NewSandbox())
	ctx := context.Background()

	payer := seedParticipant(t, conn, "alice", "5.00")
	owner := seedParticipant(t, conn, "bob", "0.00")
	team := seedTeam(t, conn, "widgets", owner.ID, "0.00", "0.00")
	payday, errStart := runner.Start(ctx)
	require.NoError(t, errStart)

	ws := &workingSet{
		participants: map[uint64]*account{
			payer.ID: {id: payer.ID, oldBalance: d("5.00"), newBalance: d("0.00")},
			owner.ID: {id: owner.ID, oldBalance: d("0.00"), newBalance: d("5.00")},
		},
		order: []uint64{payer.ID, owner.ID},
		teams: map[uint64]*teamState{},
		payments: []models.Payment{{
			PaydayID:      payday.ID,
			ParticipantID: payer.ID,
			TeamID:        team.ID,
			Amount:        d("5.00"),
			Direction:     models.PaymentToTeam,
		}},
	}

	// The payer spent money elsewhere after the snapshot was taken.
	require.NoError(t, conn.Model(&models.Participant{}).
		Where("id = ?", payer.ID).
		Update("balance", d("2.00")).Error)

	errCommit := runner.commit(ctx, payday, ws)
	require.Error(t, errCommit)
	var nbErr *NegativeBalanceError
	require.ErrorAs(t, errCommit, &nbErr)
	require.Equal(t, payer.ID, nbErr.ParticipantID)

	// Everything rolled back, including the payment rows.
	requireAmount(t, "2.00", participantBalance(t, conn, payer.ID))
	requireAmount(t, "0.00", participantBalance(t, conn, owner.ID))
	require.Empty(t, paymentRows(t, conn, payday.ID))
}

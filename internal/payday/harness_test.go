package payday

import (
	"testing"
	"time"

	"github.com/gratipay/payday/internal/db"
	"github.com/gratipay/payday/internal/models"
	"github.com/gratipay/payday/internal/processor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, errOpen)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func newTestRunner(t *testing.T, conn *gorm.DB, sandbox *processor.Sandbox, opts ...Option) *Runner {
	t.Helper()
	base := []Option{WithMaxParallelHolds(4), WithDumpDir(t.TempDir())}
	return NewRunner(conn, sandbox, append(base, opts...)...)
}

func d(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func seedParticipant(t *testing.T, conn *gorm.DB, username, balance string) *models.Participant {
	t.Helper()
	row := models.Participant{Username: username, Balance: d(balance)}
	require.NoError(t, conn.Create(&row).Error)
	return &row
}

func seedSuspicious(t *testing.T, conn *gorm.DB, username, balance string) *models.Participant {
	t.Helper()
	row := models.Participant{Username: username, Balance: d(balance), IsSuspicious: true}
	require.NoError(t, conn.Create(&row).Error)
	return &row
}

func seedCard(t *testing.T, conn *gorm.DB, participantID uint64) *models.ExchangeRoute {
	t.Helper()
	row := models.ExchangeRoute{
		ParticipantID: participantID,
		Network:       models.RouteNetworkCreditCard,
		Address:       "/cards/test",
	}
	require.NoError(t, conn.Create(&row).Error)
	return &row
}

func seedTeam(t *testing.T, conn *gorm.DB, slug string, ownerID uint64, balance, available string) *models.Team {
	t.Helper()
	row := models.Team{
		Slug:      slug,
		OwnerID:   ownerID,
		Balance:   d(balance),
		Available: d(available),
	}
	require.NoError(t, conn.Create(&row).Error)
	return &row
}

func seedPledge(t *testing.T, conn *gorm.DB, participantID, teamID uint64, amount, due string) *models.PaymentInstruction {
	t.Helper()
	row := models.PaymentInstruction{
		ParticipantID: participantID,
		TeamID:        teamID,
		Amount:        d(amount),
		Due:           d(due),
	}
	require.NoError(t, conn.Create(&row).Error)
	return &row
}

func seedTake(t *testing.T, conn *gorm.DB, teamID, participantID uint64, amount string, setAt time.Time) *models.Take {
	t.Helper()
	row := models.Take{
		TeamID:        teamID,
		ParticipantID: participantID,
		Amount:        d(amount),
		SetAt:         setAt,
	}
	require.NoError(t, conn.Create(&row).Error)
	return &row
}

func participantBalance(t *testing.T, conn *gorm.DB, id uint64) decimal.Decimal {
	t.Helper()
	var row models.Participant
	require.NoError(t, conn.First(&row, id).Error)
	return row.Balance
}

func teamBalance(t *testing.T, conn *gorm.DB, id uint64) decimal.Decimal {
	t.Helper()
	var row models.Team
	require.NoError(t, conn.First(&row, id).Error)
	return row.Balance
}

func instructionDue(t *testing.T, conn *gorm.DB, id uint64) decimal.Decimal {
	t.Helper()
	var row models.PaymentInstruction
	require.NoError(t, conn.First(&row, id).Error)
	return row.Due
}

func paymentRows(t *testing.T, conn *gorm.DB, paydayID uint64) []models.Payment {
	t.Helper()
	var rows []models.Payment
	require.NoError(t, conn.Where("payday_id = ?", paydayID).Order("id ASC").Find(&rows).Error)
	return rows
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(d(want)), "amount = %s, want %s", got, want)
}

// hoursAgo is a take timestamp safely before any payday started by the test.
func hoursAgo(n int) time.Time {
	return time.Now().UTC().Add(-time.Duration(n) * time.Hour)
}

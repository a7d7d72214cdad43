package payday

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gratipay/payday/internal/util"
	log "github.com/sirupsen/logrus"
)

// dumpPayments writes the in-flight computed payments to a local CSV so an
// operator can reconstruct what the run would have committed. Called only
// when the transactional core fails after payments were computed.
func (r *Runner) dumpPayments(ws *workingSet) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if len(ws.payments) == 0 {
		return
	}

	dir := r.dumpDir
	if dir == "" {
		dir = util.WritablePath()
	}
	path := filepath.Join(dir, fmt.Sprintf("%d_payments.csv", time.Now().Unix()))

	file, errCreate := os.Create(path)
	if errCreate != nil {
		log.WithError(errCreate).Errorf("dump payments to %s failed", path)
		return
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	_ = writer.Write([]string{"payday_id", "participant_id", "team_id", "direction", "amount"})
	for _, payment := range ws.payments {
		_ = writer.Write([]string{
			fmt.Sprintf("%d", payment.PaydayID),
			fmt.Sprintf("%d", payment.ParticipantID),
			fmt.Sprintf("%d", payment.TeamID),
			payment.Direction,
			payment.Amount.StringFixed(2),
		})
	}
	writer.Flush()
	if errFlush := writer.Error(); errFlush != nil {
		log.WithError(errFlush).Errorf("dump payments to %s failed", path)
		return
	}

	log.Warnf("computed payments dumped to %s for manual reconciliation", path)
}

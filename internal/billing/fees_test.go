package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestUpchargeTenDollars(t *testing.T) {
	charge, fee := Default().Upcharge(decimal.RequireFromString("10.00"))
	if !charge.Equal(decimal.RequireFromString("10.61")) {
		t.Fatalf("charge = %s, want 10.61", charge)
	}
	if !fee.Equal(decimal.RequireFromString("0.61")) {
		t.Fatalf("fee = %s, want 0.61", fee)
	}
}

func TestUpchargeMinimumChargeIsEvenTenDollars(t *testing.T) {
	charge, _ := Default().Upcharge(DefaultMinimumCharge)
	if !charge.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("charge = %s, want 10.00", charge)
	}
}

func TestUpchargeNetIsRetained(t *testing.T) {
	for _, raw := range []string{"9.41", "10.00", "24.00", "100.00", "537.38"} {
		amount := decimal.RequireFromString(raw)
		charge, fee := Default().Upcharge(amount)
		if !charge.Sub(fee).Equal(amount) {
			t.Fatalf("charge %s - fee %s != net %s", charge, fee, amount)
		}
	}
}

func TestChargeable(t *testing.T) {
	schedule := Default()
	if schedule.Chargeable(decimal.RequireFromString("9.40")) {
		t.Fatal("9.40 should be below the minimum charge")
	}
	if !schedule.Chargeable(decimal.RequireFromString("9.41")) {
		t.Fatal("9.41 should meet the minimum charge")
	}
}

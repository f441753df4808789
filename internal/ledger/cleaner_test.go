package ledger

import (
	"reflect"
	"testing"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
)

func row(account, debit, credit string) domain.LedgerRow {
	return domain.LedgerRow{Account: account, Debit: d(debit), Credit: d(credit)}
}

func accounts(rows []domain.LedgerRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Account
	}
	return out
}

func TestClean(t *testing.T) {
	input := []domain.LedgerRow{
		row("1000 - Cash", "500", "0"),
		row("", "10", "0"),
		row("   ", "10", "0"),
		row("Total - 11500", "100", "0"),
		row("total assets", "100", "0"),
		row("Subtotal", "100", "0"),
		row("  GRAND TOTAL  ", "0", "100"),
		row("Sum", "1", "0"),
		row("sub-total", "1", "0"),
		row("2000 - AP", "0", "300"),
		row("3000 - Dormant", "0", "0"),
		row("Opening Balance b/f", "5", "0"),
		row("Totalizer clearing", "5", "0"),
		row("4000 - Accrued total", "0", "40"),
	}

	got := accounts(Clean(input))
	want := []string{"1000 - Cash", "2000 - AP", "Totalizer clearing", "4000 - Accrued total"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Clean() accounts = %v, want %v", got, want)
	}
}

func TestClean_IdempotentAndMonotonic(t *testing.T) {
	tables := [][]domain.LedgerRow{
		nil,
		{row("Total", "1", "1")},
		{row("1000 - Cash", "1", "0"), row("Opening balance", "1", "0"), row("x", "0", "0")},
		{row("1000", "1", "0"), row("2000", "0", "1"), row("1000", "1", "0")},
	}

	for i, table := range tables {
		once := Clean(table)
		twice := Clean(once)
		if len(once) > len(table) {
			t.Errorf("table %d: len(Clean) = %d > len(input) = %d", i, len(once), len(table))
		}
		if !reflect.DeepEqual(accounts(once), accounts(twice)) {
			t.Errorf("table %d: Clean not idempotent: %v vs %v", i, accounts(once), accounts(twice))
		}
	}
}

func TestClean_DoesNotModifyInput(t *testing.T) {
	input := []domain.LedgerRow{row("Total", "1", "0"), row("1000", "1", "0")}
	_ = Clean(input)
	if input[0].Account != "Total" || len(input) != 2 {
		t.Errorf("Clean modified its input: %v", accounts(input))
	}
}

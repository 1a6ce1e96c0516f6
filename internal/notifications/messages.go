package notifications

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
)

const timeLayout = "02 Jan 2006 15:04"

func openedMessage(shift *models.Shift, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🟢 <b>SHIFT DIBUKA</b>\n")
	fmt.Fprintf(&b, "Shift: #%s\n", shift.ShortID())
	fmt.Fprintf(&b, "Kasir: %s\n", html.EscapeString(shift.CashierName))
	fmt.Fprintf(&b, "Waktu: %s\n", shift.StartTime.In(loc).Format(timeLayout))
	fmt.Fprintf(&b, "Modal Awal: %s", formatMoney(shift.InitialCash))
	return b.String()
}

func closedMessage(shift *models.Shift, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🔴 <b>SHIFT DITUTUP</b>\n")
	writeHeader(&b, shift, loc)
	b.WriteString("\n<b>Ringkasan</b>\n")
	writeTotals(&b, shift)
	b.WriteString("\n<b>Rekonsiliasi</b>\n")
	fmt.Fprintf(&b, "Kas Diharapkan: %s\n", formatMoney(deref(shift.ExpectedCash)))
	fmt.Fprintf(&b, "Kas Aktual: %s\n", formatMoney(deref(shift.FinalCash)))
	fmt.Fprintf(&b, "Selisih Kas: %s\n", formatDifference(deref(shift.CashDifference)))
	fmt.Fprintf(&b, "Non-Tunai Diharapkan: %s\n", formatMoney(deref(shift.ExpectedNonCash)))
	fmt.Fprintf(&b, "Non-Tunai Aktual: %s\n", formatMoney(deref(shift.FinalNonCash)))
	fmt.Fprintf(&b, "Selisih Non-Tunai: %s", formatDifference(deref(shift.NonCashDifference)))
	writeNotes(&b, shift)
	return b.String()
}

func terminatedMessage(shift *models.Shift, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("⛔ <b>SHIFT DIHENTIKAN ADMIN</b>\n")
	writeHeader(&b, shift, loc)
	b.WriteString("\n")
	writeTotals(&b, shift)
	writeNotes(&b, shift)
	return strings.TrimRight(b.String(), "\n")
}

func writeHeader(b *strings.Builder, shift *models.Shift, loc *time.Location) {
	fmt.Fprintf(b, "Shift: #%s\n", shift.ShortID())
	fmt.Fprintf(b, "Kasir: %s\n", html.EscapeString(shift.CashierName))
	fmt.Fprintf(b, "Mulai: %s\n", shift.StartTime.In(loc).Format(timeLayout))
	if shift.EndTime != nil {
		fmt.Fprintf(b, "Selesai: %s\n", shift.EndTime.In(loc).Format(timeLayout))
	}
}

func writeTotals(b *strings.Builder, shift *models.Shift) {
	fmt.Fprintf(b, "Modal Awal: %s\n", formatMoney(shift.InitialCash))
	fmt.Fprintf(b, "Transaksi: %d\n", shift.TransactionsCount)
	fmt.Fprintf(b, "Total Penjualan: %s\n", formatMoney(shift.TotalSales))
	fmt.Fprintf(b, "Penjualan Tunai: %s\n", formatMoney(shift.TotalCashSales))
	fmt.Fprintf(b, "Penjualan Non-Tunai: %s\n", formatMoney(shift.TotalNonCashSales))
	fmt.Fprintf(b, "Total Diskon: %s\n", formatMoney(shift.TotalDiscount))
	fmt.Fprintf(b, "Kas Masuk: %s\n", formatMoney(shift.TotalCashIn))
	fmt.Fprintf(b, "Kas Keluar: %s\n", formatMoney(shift.TotalCashOut))
}

func writeNotes(b *strings.Builder, shift *models.Shift) {
	if shift.Notes == nil || strings.TrimSpace(*shift.Notes) == "" {
		return
	}
	fmt.Fprintf(b, "\nCatatan: %s", html.EscapeString(strings.TrimSpace(*shift.Notes)))
}

// formatDifference marks a negative difference as a shortage and a positive
// one as an overage.
func formatDifference(diff decimal.Decimal) string {
	switch diff.Sign() {
	case -1:
		return fmt.Sprintf("%s ⚠️ KURANG", formatMoney(diff))
	case 1:
		return fmt.Sprintf("+%s ➕ LEBIH", formatMoney(diff))
	default:
		return fmt.Sprintf("%s ✅ PAS", formatMoney(diff))
	}
}

// formatMoney renders rupiah with dot thousands separators and a comma
// before cents, which are omitted when zero.
func formatMoney(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	out := sign + "Rp " + grouped.String()
	if cents != "00" {
		out += "," + cents
	}
	return out
}

func deref(value *decimal.Decimal) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return *value
}

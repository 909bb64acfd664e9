package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tailorhub/tailorhub/internal/tracking"
)

// Formatter renders message bodies.
type Formatter struct {
	printer  *message.Printer
	currency string
	loc      *time.Location
}

// NewFormatter builds a formatter for currency amounts in the given zone.
func NewFormatter(currency string, loc *time.Location) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return Formatter{printer: message.NewPrinter(language.English), currency: currency, loc: loc}
}

// Amount renders d with thousands separators and two decimals, e.g. "GHS 1,250.00".
func (f Formatter) Amount(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0)
	frac := d.Sub(whole).StringFixed(2)[1:]
	out := sign + f.printer.Sprintf("%d", whole.IntPart()) + frac
	if f.currency == "" {
		return out
	}
	return f.currency + " " + out
}

// Subject returns the email subject for p.
func (f Formatter) Subject(p Payload) string {
	if p.Kind == KindPaymentConfirmation {
		return fmt.Sprintf("Payment received for order %s", p.OrderNumber)
	}
	return fmt.Sprintf("Reminder: order %s", p.OrderNumber)
}

// Body renders the message text for p. today is used for reminder labels.
func (f Formatter) Body(p Payload, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", p.Customer.FullName)
	due := tracking.DateIn(p.DueDate, f.loc)
	switch p.Kind {
	case KindPaymentConfirmation:
		fmt.Fprintf(&b, "We received your payment of %s for order %s.\n", f.Amount(p.Amount), p.OrderNumber)
		if p.Balance.IsZero() {
			b.WriteString("Your order is fully paid. Thank you!\n")
		} else {
			fmt.Fprintf(&b, "Outstanding balance: %s.\n", f.Amount(p.Balance))
		}
	default:
		days := tracking.DaysToDue(due, today, f.loc)
		label := tracking.Label(tracking.Classify(days), days)
		fmt.Fprintf(&b, "Your order %s (%s) is due on %s: %s.\n", p.OrderNumber, p.Description, due.Format("Mon 2 Jan 2006"), label)
		if p.Balance.IsPositive() {
			fmt.Fprintf(&b, "Outstanding balance: %s.\n", f.Amount(p.Balance))
		}
	}
	return b.String()
}

// Short renders a single-line SMS body.
func (f Formatter) Short(p Payload, today time.Time) string {
	if p.Kind == KindPaymentConfirmation {
		return fmt.Sprintf("%s: payment of %s received. Balance %s.", p.OrderNumber, f.Amount(p.Amount), f.Amount(p.Balance))
	}
	due := tracking.DateIn(p.DueDate, f.loc)
	days := tracking.DaysToDue(due, today, f.loc)
	return fmt.Sprintf("%s: %s. Balance %s.", p.OrderNumber, tracking.Label(tracking.Classify(days), days), f.Amount(p.Balance))
}

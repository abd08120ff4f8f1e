package templates

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// GuestMessage holds the data of the welcome message sent to a guest
type GuestMessage struct {
	GuestName   string
	BranchName  string
	Code        string
	CheckIn     *time.Time
	CheckOut    *time.Time
	Room        string
	AmountCents int64
	Currency    string
	PaymentLink string
	DoorPin     string
}

var printer = message.NewPrinter(language.Spanish)

// Render builds the WhatsApp text body. Sections without data are omitted.
func (m GuestMessage) Render() string {
	var b strings.Builder

	name := firstName(m.GuestName)
	if name == "" {
		b.WriteString("¡Hola!")
	} else {
		fmt.Fprintf(&b, "¡Hola %s!", name)
	}
	if m.BranchName != "" {
		fmt.Fprintf(&b, " Gracias por reservar en %s.", m.BranchName)
	} else {
		b.WriteString(" Gracias por tu reserva.")
	}
	b.WriteString("\n")

	if m.Code != "" {
		fmt.Fprintf(&b, "\nReserva: %s", m.Code)
	}
	if m.CheckIn != nil {
		fmt.Fprintf(&b, "\nLlegada: %s (desde las 14:00)", m.CheckIn.Format("02/01/2006"))
	}
	if m.CheckOut != nil {
		fmt.Fprintf(&b, "\nSalida: %s (hasta las 12:00)", m.CheckOut.Format("02/01/2006"))
	}
	if m.Room != "" {
		fmt.Fprintf(&b, "\nHabitación: %s", m.Room)
	}

	if m.PaymentLink != "" {
		b.WriteString("\n\n")
		if m.AmountCents > 0 {
			fmt.Fprintf(&b, "Total a pagar: %s\n", FormatAmount(m.AmountCents, m.Currency))
		}
		fmt.Fprintf(&b, "Puedes pagar aquí: %s", m.PaymentLink)
	}

	if m.DoorPin != "" {
		fmt.Fprintf(&b, "\n\nTu código de acceso es %s. Funciona desde la hora de llegada hasta la salida.", m.DoorPin)
	}

	b.WriteString("\n\n¡Te esperamos!")
	return b.String()
}

// FormatAmount renders minor units with Spanish digit grouping, e.g.
// "COP 180.000" or "EUR 54,50".
func FormatAmount(cents int64, currency string) string {
	whole, frac := cents/100, cents%100
	var amount string
	if frac == 0 {
		amount = printer.Sprintf("%d", whole)
	} else {
		amount = printer.Sprintf("%.2f", float64(cents)/100)
	}
	if currency == "" {
		return "$" + amount
	}
	return currency + " " + amount
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const bookingHTML = `<html><head><style>td { padding: 4px; }</style></head><body>
<h1>¡Nueva reserva!</h1>
<table>
<tr><td>Número de reserva:</td><td>4012345678</td></tr>
<tr><td>Nombre del huésped:</td><td>María García</td></tr>
<tr><td>Email:</td><td>mgarcia.123@guest.booking.com</td></tr>
<tr><td>Teléfono:</td><td>+57 300 123 4567</td></tr>
<tr><td>Llegada:</td><td>lunes, 1 de diciembre de 2025</td></tr>
<tr><td>Salida:</td><td>miércoles, 3 de diciembre de 2025</td></tr>
<tr><td>Habitación:</td><td>Dormitorio compartido de 6 camas</td></tr>
<tr><td>Precio total:</td><td>COP 180.000</td></tr>
</table></body></html>`

const airbnbText = `Nueva reserva confirmada. Carlos llega el 5 dic.

Llegada
vie, 5 dic. 2025
15:00

Salida
dom, 7 dic. 2025
11:00

Huéspedes
2 adultos

Código de confirmación
HMABCD1234

Total (COP)
$ 250.000`

const hostelworldText = `Hostelworld Booking Confirmation
Booking Ref: 123456-987654
Guest Name: Anna Müller
Email: anna.mueller@example.de
Phone: +49 151 2345 6789
Arriving: 10/01/2026
Nights: 3
Room: 2 x Mixed Dorm 8 Beds
Total Price: EUR 54.00`

const expediaText = `Itinerary: 7281234567890
Guest: John Smith
Check-in: Dec 20, 2025
Check-out: Dec 22, 2025
Room type: Private Double Room
Total amount: USD 120.50`

const genericText = `Reserva directa
Nombre: Luis Gómez
Correo: luis@example.com
Celular: 300 555 1234
Fecha de entrada: 15/12/2025
Fecha de salida: 18/12/2025
Habitación: Privada con baño
Total: $ 300.000`

var channelFixtures = []struct {
	name    string
	in      Input
	channel string
}{
	{
		name: "booking",
		in: Input{
			MessageID: "<a1@booking.com>",
			From:      "Booking.com <noreply@booking.com>",
			Subject:   "Booking.com - ¡Nueva reserva! (4012345678, lunes, 1 de diciembre de 2025)",
			HTML:      bookingHTML,
		},
		channel: ChannelBooking,
	},
	{
		name: "airbnb",
		in: Input{
			MessageID: "<b2@airbnb.com>",
			From:      "Airbnb <automated@airbnb.com>",
			Subject:   "Reserva confirmada: Carlos Ruiz llega el 5 dic.",
			Text:      airbnbText,
		},
		channel: ChannelAirbnb,
	},
	{
		name: "hostelworld",
		in: Input{
			MessageID: "<c3@hostelworld.com>",
			From:      "Hostelworld <noreply@hostelworld.com>",
			Subject:   "New Confirmed Booking - 123456-987654",
			Text:      hostelworldText,
		},
		channel: ChannelHostelworld,
	},
	{
		name: "expedia",
		in: Input{
			MessageID: "<d4@expedia.com>",
			From:      "Expedia Partner Central <hotel@expediapartnercentral.com>",
			Subject:   "Expedia booking: Itinerary 7281234567890",
			Text:      expediaText,
		},
		channel: ChannelExpedia,
	},
	{
		name: "generic",
		in: Input{
			MessageID: "<e5@mihostel.com>",
			From:      "Reservas <reservas@mihostel.com>",
			Subject:   "Nueva reserva directa",
			Text:      genericText,
		},
		channel: ChannelGeneric,
	},
}

func TestParse_EveryChannelYieldsValidDraft(t *testing.T) {
	p := New()
	for _, fx := range channelFixtures {
		t.Run(fx.name, func(t *testing.T) {
			drafts := p.Parse(fx.in)
			require.NotEmpty(t, drafts)
			for _, d := range drafts {
				assert.NotEmpty(t, d.GuestName)
				require.NotNil(t, d.CheckIn)
				require.NotNil(t, d.CheckOut)
				assert.True(t, d.CheckIn.Before(*d.CheckOut))
				assert.Equal(t, fx.channel, d.Channel)
				assert.Equal(t, fx.in.MessageID, d.SourceMessageID)
				assert.False(t, d.Cancelled)
			}
		})
	}
}

func TestParse_BookingHTML(t *testing.T) {
	drafts := New().Parse(channelFixtures[0].in)
	require.Len(t, drafts, 1)
	d := drafts[0]

	assert.Equal(t, "María García", d.GuestName)
	assert.Equal(t, "mgarcia.123@guest.booking.com", d.GuestEmail)
	assert.Equal(t, "+573001234567", d.GuestPhone)
	assert.Equal(t, day(2025, time.December, 1), *d.CheckIn)
	assert.Equal(t, day(2025, time.December, 3), *d.CheckOut)
	assert.Equal(t, "4012345678", d.ChannelReservationCode)
	assert.Equal(t, "Dormitorio compartido de 6 camas", d.RoomDescription)
	assert.Equal(t, int64(18000000), d.AmountCents)
	assert.Equal(t, "COP", d.Currency)
	assert.Equal(t, 1, d.SourceUnit)
}

func TestParse_AirbnbNameFromSubject(t *testing.T) {
	drafts := New().Parse(channelFixtures[1].in)
	require.Len(t, drafts, 1)
	d := drafts[0]

	assert.Equal(t, "Carlos Ruiz", d.GuestName)
	assert.Equal(t, "HMABCD1234", d.ChannelReservationCode)
	assert.Equal(t, day(2025, time.December, 5), *d.CheckIn)
	assert.Equal(t, day(2025, time.December, 7), *d.CheckOut)
	assert.Equal(t, int64(25000000), d.AmountCents)
	assert.Empty(t, d.Currency)
}

func TestParse_HostelworldMultiplierExpandsUnits(t *testing.T) {
	drafts := New().Parse(channelFixtures[2].in)
	require.Len(t, drafts, 2)

	assert.Equal(t, "123456-987654", drafts[0].ChannelReservationCode)
	assert.Equal(t, "123456-987654-2", drafts[1].ChannelReservationCode)
	assert.Equal(t, 1, drafts[0].SourceUnit)
	assert.Equal(t, 2, drafts[1].SourceUnit)
	assert.Equal(t, "Mixed Dorm 8 Beds", drafts[1].RoomDescription)
	assert.Equal(t, int64(5400), drafts[0].AmountCents)
	assert.Equal(t, int64(0), drafts[1].AmountCents)
	assert.Equal(t, "EUR", drafts[0].Currency)

	// no departure given: three nights from the arrival date
	assert.Equal(t, day(2026, time.January, 10), *drafts[0].CheckIn)
	assert.Equal(t, day(2026, time.January, 13), *drafts[0].CheckOut)
}

func TestParse_ExpediaMonthFirstDates(t *testing.T) {
	drafts := New().Parse(channelFixtures[3].in)
	require.Len(t, drafts, 1)
	d := drafts[0]

	assert.Equal(t, "John Smith", d.GuestName)
	assert.Equal(t, "7281234567890", d.ChannelReservationCode)
	assert.Equal(t, day(2025, time.December, 20), *d.CheckIn)
	assert.Equal(t, day(2025, time.December, 22), *d.CheckOut)
	assert.Equal(t, int64(12050), d.AmountCents)
	assert.Equal(t, "USD", d.Currency)
}

func TestParse_GenericDayFirst(t *testing.T) {
	drafts := New().Parse(channelFixtures[4].in)
	require.Len(t, drafts, 1)
	d := drafts[0]

	assert.Equal(t, "Luis Gómez", d.GuestName)
	assert.Equal(t, "luis@example.com", d.GuestEmail)
	assert.Equal(t, "3005551234", d.GuestPhone)
	assert.Equal(t, day(2025, time.December, 15), *d.CheckIn)
	assert.Equal(t, day(2025, time.December, 18), *d.CheckOut)
	assert.Empty(t, d.ChannelReservationCode)
	assert.Equal(t, int64(30000000), d.AmountCents)
}

func TestParse_NuevaReservaScenario(t *testing.T) {
	in := Input{
		MessageID: "<scenario@booking.com>",
		From:      "noreply@booking.com",
		Subject:   "Nueva reserva",
		Text: "Nombre del huésped: Juan Pérez\n" +
			"Check-in: 2025-12-01\n" +
			"Check-out: 2025-12-03\n" +
			"Número de reserva: BK12345\n",
	}

	drafts := New().Parse(in)
	require.Len(t, drafts, 1)
	d := drafts[0]

	assert.Equal(t, "Juan Pérez", d.GuestName)
	assert.Equal(t, "BK12345", d.ChannelReservationCode)
	assert.Equal(t, ChannelBooking, d.Channel)
	assert.Equal(t, day(2025, time.December, 1), *d.CheckIn)
	assert.Equal(t, day(2025, time.December, 3), *d.CheckOut)
	assert.False(t, d.Cancelled)
}

func TestParse_MultipleRoomLines(t *testing.T) {
	in := Input{
		MessageID: "<multi@booking.com>",
		From:      "noreply@booking.com",
		Subject:   "Nueva reserva",
		Text: `Nombre del huésped: Pedro Díaz
Check-in: 2025-12-01
Check-out: 2025-12-04
Número de reserva: BK999
Habitación 1: Dormitorio 4 camas
Habitación 2: Habitación doble privada
Total: 450.000 COP`,
	}

	drafts := New().Parse(in)
	require.Len(t, drafts, 2)
	assert.Equal(t, "BK999", drafts[0].ChannelReservationCode)
	assert.Equal(t, "Dormitorio 4 camas", drafts[0].RoomDescription)
	assert.Equal(t, int64(45000000), drafts[0].AmountCents)
	assert.Equal(t, "BK999-2", drafts[1].ChannelReservationCode)
	assert.Equal(t, "Habitación doble privada", drafts[1].RoomDescription)
	assert.Equal(t, int64(0), drafts[1].AmountCents)
	assert.Equal(t, "Pedro Díaz", drafts[1].GuestName)
}

func TestParse_RoomCountRepeatsSingleRoom(t *testing.T) {
	in := Input{
		From:    "reservas@mihostel.com",
		Subject: "Reserva",
		Text: `Nombre: Grupo Escolar
Llegada: 2025-11-10
Salida: 2025-11-12
Código de reserva: GRP-77
Habitación: Dormitorio 10 camas
Habitaciones: 3`,
	}

	drafts := New().Parse(in)
	require.Len(t, drafts, 3)
	assert.Equal(t, "GRP-77-3", drafts[2].ChannelReservationCode)
	assert.Equal(t, "Dormitorio 10 camas", drafts[2].RoomDescription)
}

func TestParse_CancellationIsTagged(t *testing.T) {
	in := Input{
		MessageID: "<cancel@booking.com>",
		From:      "Booking.com <noreply@booking.com>",
		Subject:   "Booking.com - Reserva cancelada (4012345678)",
		Text: `La reserva ha sido cancelada.
Número de reserva: 4012345678
Nombre del huésped: María García
Llegada: 1 de diciembre de 2025`,
	}

	drafts := New().Parse(in)
	require.Len(t, drafts, 1)
	assert.True(t, drafts[0].Cancelled)
	assert.Equal(t, "4012345678", drafts[0].ChannelReservationCode)
	assert.Nil(t, drafts[0].CheckIn)
}

func TestParse_CancellationDetectedFromBody(t *testing.T) {
	in := Input{
		From:    "Airbnb <automated@airbnb.com>",
		Subject: "Actualización de tu reserva",
		Text:    "Your reservation HMZZZZ9999 has been cancelled by the guest.\nGuest: Ana",
	}

	drafts := New().Parse(in)
	require.Len(t, drafts, 1)
	assert.True(t, drafts[0].Cancelled)
	assert.Equal(t, "HMZZZZ9999", drafts[0].ChannelReservationCode)
}

func TestParse_CancellationWithoutCodeIsIgnored(t *testing.T) {
	in := Input{
		From:    "reservas@mihostel.com",
		Subject: "Reserva cancelada",
		Text:    "Nombre: Luis Gómez\nLlegada: 2025-12-01\nTu reserva ha sido cancelada.",
	}

	assert.Nil(t, New().Parse(in))
}

func TestParse_NonReservationReturnsNil(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"newsletter", Input{From: "news@booking.com", Subject: "Consejos para tu alojamiento", Text: "Mejora tu puntuación con estos consejos."}},
		{"name only", Input{From: "a@b.com", Subject: "Hola", Text: "Nombre: Ana"}},
		{"dates without guest", Input{From: "a@b.com", Subject: "Reserva", Text: "Check-in: 2025-12-01\nCódigo de reserva: X1234"}},
		{"empty", Input{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, New().Parse(tt.in))
		})
	}
}

func TestParse_CodeWithoutDatesIsEnough(t *testing.T) {
	in := Input{
		From:    "noreply@booking.com",
		Subject: "Nueva reserva",
		Text:    "Nombre del huésped: Juan Pérez\nNúmero de reserva: BK555",
	}

	drafts := New().Parse(in)
	require.Len(t, drafts, 1)
	assert.Nil(t, drafts[0].CheckIn)
	assert.Nil(t, drafts[0].CheckOut)
	assert.Equal(t, "BK555", drafts[0].ChannelReservationCode)
}

func TestParse_ShortLabeledCode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"three characters", "Número de reserva: BK2", "BK2"},
		{"single digit", "Número de reserva: 7", "7"},
		{"trailing punctuation", "Número de reserva: A1.", "A1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts := New().Parse(Input{
				From:    "noreply@booking.com",
				Subject: "Nueva reserva",
				Text:    "Nombre del huésped: Juan Pérez\nCheck-in: 2025-12-01\n" + tt.line,
			})
			require.Len(t, drafts, 1)
			assert.Equal(t, tt.want, drafts[0].ChannelReservationCode)
		})
	}
}

func TestParse_InvertedCheckOutFallsBackToOneNight(t *testing.T) {
	in := Input{
		From:    "reservas@mihostel.com",
		Subject: "Reserva",
		Text:    "Huésped: Ana Torres\nCheck-in: 2025-12-05\nCheck-out: 2025-12-01",
	}

	drafts := New().Parse(in)
	require.Len(t, drafts, 1)
	assert.Equal(t, day(2025, time.December, 6), *drafts[0].CheckOut)
}

func TestParse_DateFromBookingSubject(t *testing.T) {
	in := Input{
		From:    "noreply@booking.com",
		Subject: "Booking.com - ¡Nueva reserva! (4099, lunes, 1 de diciembre de 2025)",
		Text:    "Nombre del huésped: Juan Pérez\nNoches: 2",
	}

	drafts := New().Parse(in)
	require.Len(t, drafts, 1)
	assert.Equal(t, "4099", drafts[0].ChannelReservationCode)
	assert.Equal(t, day(2025, time.December, 1), *drafts[0].CheckIn)
	assert.Equal(t, day(2025, time.December, 3), *drafts[0].CheckOut)
}

func TestParse_FallsBackToTextPart(t *testing.T) {
	in := Input{
		From:    "noreply@booking.com",
		Subject: "Nueva reserva",
		HTML:    "<p>Ver detalles en la extranet</p>",
		Text:    "Nombre del huésped: Juan Pérez\nNúmero de reserva: BK777\nCheck-in: 2025-12-01",
	}

	drafts := New().Parse(in)
	require.Len(t, drafts, 1)
	assert.Equal(t, "BK777", drafts[0].ChannelReservationCode)
}

func TestParse_Deterministic(t *testing.T) {
	p := New()
	for _, fx := range channelFixtures {
		assert.Equal(t, p.Parse(fx.in), p.Parse(fx.in), fx.name)
	}
}

func TestDetectChannel_Priority(t *testing.T) {
	p := New()
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"sender beats subject", Input{From: "noreply@booking.com", Subject: "Your Airbnb listing"}, ChannelBooking},
		{"subdomain sender", Input{From: "x@mailer.hostelworld.com"}, ChannelHostelworld},
		{"subject keyword", Input{From: "me@gmail.com", Subject: "Fwd: Expedia booking"}, ChannelExpedia},
		{"body marker", Input{From: "me@gmail.com", Subject: "Fwd", Text: "Sent via Airbnb"}, ChannelAirbnb},
		{"generic fallback", Input{From: "me@gmail.com", Subject: "Reserva"}, ChannelGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.DetectChannel(tt.in))
		})
	}
}

func TestNewWithFormats_NoGenericReturnsNil(t *testing.T) {
	p := NewWithFormats(DefaultFormats()[0])
	in := Input{From: "me@gmail.com", Subject: "Reserva", Text: "Nombre: Ana\nCheck-in: 2025-12-01"}

	assert.Equal(t, "", p.DetectChannel(in))
	assert.Nil(t, p.Parse(in))
}

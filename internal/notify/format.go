package notify

import (
	"strings"

	"marta-relay/internal/models"
)

const (
	ticketHeader   = "NUEVO AVISO - Marta"
	fallbackHeader = "AVISO SIN PROCESAR - Marta (no se pudo generar la ficha)"
	emptyValue     = "-"
)

// FormatTicket renders t as the dispatcher SMS. The layout is fixed; the
// CallSid line is omitted when callSID is empty.
func FormatTicket(t models.Ticket, callSID, caller string) string {
	lines := []struct {
		label string
		value string
	}{
		{"Nombre", t.Name},
		{"Teléfono", t.Phone},
		{"Llamante", caller},
		{"Dirección", t.Address},
		{"Zona", t.Zone},
		{"Servicio", t.Service},
		{"Avería", t.Fault},
		{"Urgente", t.Urgent},
		{"Nocturno", t.NightSurchargeAccepted},
		{"Notas", t.Notes},
	}

	var b strings.Builder
	b.WriteString(ticketHeader)
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString(l.label)
		b.WriteString(": ")
		b.WriteString(orDash(l.value))
		b.WriteByte('\n')
	}
	writeCallSID(&b, callSID)
	return strings.TrimRight(b.String(), "\n")
}

// FormatFallback carries the raw transcript verbatim for calls whose
// ticket could not be produced or delivered. The call id and caller come
// before the transcript so truncation only ever cuts transcript text.
func FormatFallback(transcript, callSID, caller string) string {
	var b strings.Builder
	b.WriteString(fallbackHeader)
	b.WriteByte('\n')
	writeCallSID(&b, callSID)
	b.WriteString("Llamante: ")
	b.WriteString(orDash(caller))
	b.WriteString("\nTranscripción:\n")
	if strings.TrimSpace(transcript) == "" {
		b.WriteString("(vacía)\n")
	} else {
		b.WriteString(transcript)
		if !strings.HasSuffix(transcript, "\n") {
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeCallSID(b *strings.Builder, callSID string) {
	if callSID == "" {
		return
	}
	b.WriteString("CallSid: ")
	b.WriteString(callSID)
	b.WriteByte('\n')
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyValue
	}
	return strings.TrimSpace(s)
}

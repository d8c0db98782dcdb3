package extract

import (
	"fmt"
	"strings"

	"marta-relay/internal/models"
)

const systemPrompt = "Eres un asistente que extrae datos de llamadas de clientes de una empresa de reparaciones del hogar. " +
	"Respondes únicamente con un objeto JSON válido, sin texto adicional."

// Fields are the exact JSON keys requested from the model.
var Fields = []string{
	"nombre", "telefono", "direccion", "zona", "servicio",
	"averia", "urgente", "aceptoNocturno", "notas",
}

// BuildPrompt embeds the transcript together with the field list, the
// service vocabulary and the night-surcharge rule for this call.
func BuildPrompt(transcript string, night bool) string {
	var b strings.Builder

	b.WriteString("A partir de la transcripción de la llamada, devuelve un objeto JSON con exactamente estas claves:\n")
	b.WriteString(strings.Join(Fields, ", "))
	b.WriteString("\n\nReglas:\n")
	fmt.Fprintf(&b, "- \"servicio\" debe ser uno de: %s.\n", strings.Join(models.ServiceCategories, ", "))
	b.WriteString("- \"urgente\" debe ser \"sí\" o \"no\".\n")
	if night {
		b.WriteString("- La llamada es en horario nocturno: \"aceptoNocturno\" es \"sí\" solo si el cliente aceptó " +
			"explícitamente el recargo nocturno; en cualquier otro caso es \"no\".\n")
	} else {
		b.WriteString("- La llamada es en horario diurno: \"aceptoNocturno\" debe ser \"n-a\".\n")
	}
	b.WriteString("- Si un dato no aparece en la transcripción, deja la clave con una cadena vacía. No inventes datos.\n")
	b.WriteString("- En \"notas\" incluye solo información útil para el técnico que no encaje en otra clave.\n")
	b.WriteString("\nTranscripción:\n")
	b.WriteString(transcript)
	return b.String()
}

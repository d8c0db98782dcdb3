// Package prompt holds the Spanish persona used on every call: the session
// instructions sent to the realtime model and the opening line.
package prompt

import (
	"fmt"
	"strings"

	"marta-relay/internal/clock"
)

const AgentName = "Marta"

// NightSurchargeScript is read to callers inside the night window.
const NightSurchargeScript = "Antes de continuar, informa al cliente de que las visitas entre las 22:00 y las 08:00 " +
	"tienen un recargo nocturno y pregúntale de forma clara si lo acepta. Recuerda su respuesta."

// CollectedFields is the order in which the agent asks for data.
var CollectedFields = []string{
	"nombre completo",
	"teléfono de contacto",
	"dirección completa del servicio",
	"zona o barrio",
	"tipo de servicio (fontanería, electricidad, cerrajería, climatización, etc.)",
	"descripción de la avería",
	"si es urgente",
}

var farewells = map[clock.DayPart]string{
	clock.Morning:   "Gracias por llamar. Un técnico se pondrá en contacto contigo en breve. ¡Que tengas un buen día!",
	clock.Afternoon: "Gracias por llamar. Un técnico se pondrá en contacto contigo en breve. ¡Que pases buena tarde!",
	clock.Night:     "Gracias por llamar. Un técnico se pondrá en contacto contigo lo antes posible. ¡Buenas noches!",
}

// Farewell returns the closing line for a day part.
func Farewell(p clock.DayPart) string {
	if f, ok := farewells[p]; ok {
		return f
	}
	return farewells[clock.Morning]
}

// Instructions builds the session instructions for one call.
func Instructions(business string, c clock.Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Eres %s, la recepcionista telefónica de %s, una empresa de reparaciones del hogar. ", AgentName, business)
	b.WriteString("Hablas siempre en español de España, con frases cortas, tono cálido y profesional. ")
	b.WriteString("Nunca inventes precios, plazos ni datos. No des diagnósticos técnicos.\n\n")

	b.WriteString("Tu objetivo es recoger, de uno en uno y en este orden, los siguientes datos:\n")
	for i, f := range CollectedFields {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}
	b.WriteString("Si el cliente ya ha dado un dato, no lo vuelvas a pedir. ")
	b.WriteString("Confirma el teléfono repitiéndolo cifra a cifra.\n\n")

	if c.IsNight {
		b.WriteString(NightSurchargeScript)
		b.WriteString("\n\n")
	}

	b.WriteString("Cuando tengas todos los datos, resume brevemente el aviso y despídete con esta frase: \"")
	b.WriteString(Farewell(c.DayPart))
	b.WriteString("\"\n")
	b.WriteString("Habla solo cuando el cliente haya terminado de hablar y no repitas el saludo.")
	return b.String()
}

// Greeting is the one-off instruction that makes the model open the call.
func Greeting(business string, c clock.Context) string {
	line := fmt.Sprintf("Hola, soy %s, de %s. ¿En qué puedo ayudarte?", AgentName, business)
	if c.IsNight {
		line = fmt.Sprintf("Hola, soy %s, de %s, servicio de urgencias nocturno. ¿En qué puedo ayudarte?", AgentName, business)
	}
	return fmt.Sprintf("Saluda al cliente diciendo exactamente: \"%s\" y espera su respuesta.", line)
}

package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Values used by Ticket.Urgent and Ticket.NightSurchargeAccepted.
const (
	Yes           = "sí"
	No            = "no"
	NotApplicable = "n-a"
)

// ServiceOther is the catch-all category for faults outside the vocabulary.
const ServiceOther = "otros"

// ServiceCategories is the closed vocabulary for Ticket.Service.
var ServiceCategories = []string{
	"fontanería",
	"electricidad",
	"cerrajería",
	"climatización",
	"electrodomésticos",
	"carpintería",
	"albañilería",
	"pintura",
	"cristalería",
	"persianas",
	ServiceOther,
}

var serviceAliases = map[string]string{
	"fontanero":          "fontanería",
	"electricista":       "electricidad",
	"cerrajero":          "cerrajería",
	"aire acondicionado": "climatización",
	"calefaccion":        "climatización",
	"carpintero":         "carpintería",
	"albanil":            "albañilería",
	"pintor":             "pintura",
	"cristalero":         "cristalería",
	"persiana":           "persianas",
}

// Ticket is the structured summary of one call. Every field is optional and
// empty when the caller did not provide it.
type Ticket struct {
	Name                   string `json:"nombre"`
	Phone                  string `json:"telefono"`
	Address                string `json:"direccion"`
	Zone                   string `json:"zona"`
	Service                string `json:"servicio"`
	Fault                  string `json:"averia"`
	Urgent                 string `json:"urgente"`
	NightSurchargeAccepted string `json:"aceptoNocturno"`
	Notes                  string `json:"notas"`
}

// NoTranscriptionNote marks tickets produced for calls without any speech.
const NoTranscriptionNote = "Sin transcripción: el cliente no habló o no se pudo transcribir la llamada."

// NoTranscriptionTicket is the fixed ticket used when a call produced no
// transcript at all.
func NoTranscriptionTicket(night bool) Ticket {
	return Ticket{Notes: NoTranscriptionNote}.Normalize(night)
}

// Normalize trims every field, folds Service onto ServiceCategories, folds
// Urgent onto sí/no and applies the night-surcharge rule: n-a outside the
// night window, no when at night and not explicitly accepted.
func (t Ticket) Normalize(night bool) Ticket {
	t.Name = strings.TrimSpace(t.Name)
	t.Phone = strings.TrimSpace(t.Phone)
	t.Address = strings.TrimSpace(t.Address)
	t.Zone = strings.TrimSpace(t.Zone)
	t.Fault = strings.TrimSpace(t.Fault)
	t.Notes = strings.TrimSpace(t.Notes)
	t.Service = NormalizeService(t.Service)

	switch yesNo(t.Urgent) {
	case Yes:
		t.Urgent = Yes
	case No:
		t.Urgent = No
	default:
		t.Urgent = ""
	}

	if !night {
		t.NightSurchargeAccepted = NotApplicable
	} else if yesNo(t.NightSurchargeAccepted) == Yes {
		t.NightSurchargeAccepted = Yes
	} else {
		t.NightSurchargeAccepted = No
	}
	return t
}

// NormalizeService maps free text onto the service vocabulary. Empty stays
// empty; anything unrecognised becomes ServiceOther.
func NormalizeService(s string) string {
	key := fold(s)
	if key == "" {
		return ""
	}
	for _, c := range ServiceCategories {
		if fold(c) == key {
			return c
		}
	}
	if c, ok := serviceAliases[key]; ok {
		return c
	}
	return ServiceOther
}

func yesNo(s string) string {
	switch fold(s) {
	case "si", "s", "yes", "y", "true", "acepta", "aceptado":
		return Yes
	case "no", "n", "false", "rechaza":
		return No
	default:
		return ""
	}
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases s and strips diacritics so "Fontanería" and "fontaneria"
// compare equal.
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return out
}

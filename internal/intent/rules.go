package intent

import (
	"regexp"

	"github.com/capitalize-ai/support-console/internal/model"
)

// Rule maps a set of pattern alternatives to one intent type.
type Rule struct {
	Type       model.IntentType
	Confidence float64
	Patterns   []*regexp.Regexp
}

func (r Rule) match(text string) bool {
	for _, p := range r.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// GeneralConfidence is returned when no rule matches.
const GeneralConfidence = 0.3

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// DefaultRules is ordered from most to least specific. Patterns run against
// lower-cased text with diacritics removed.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:       model.IntentTrackingNumber,
			Confidence: 0.95,
			Patterns: patterns(
				`\b(numero|codigo|link|enlace|guia) de (seguimiento|rastreo|envio)\b`,
				`\btracking\b`,
				`\brastre(ar|o)\b`,
				`\bseguimiento (de|del) (mi )?(pedido|paquete|envio|orden)\b`,
			),
		},
		{
			Type:       model.IntentDeliveryProblem,
			Confidence: 0.92,
			Patterns: patterns(
				`\bno (me )?(ha|han) llegado\b`,
				`\bno (me )?(llego|llegaron)\b`,
				`\b(aun|todavia) no (lo |la |me )?(he )?(llega|llego|recibido|recibo)\b`,
				`\bno (lo |la )?he recibido\b`,
				`\b(roto|rota|rotos|danad[oa]s?|defectuos[oa]s?)\b`,
				`\b(paquete|pedido|envio) (perdido|extraviado)\b`,
				`\bse (perdio|extravio)\b`,
				`\b(producto|articulo|talla|color) (equivocad[oa]|incorrect[oa]|erroneo)\b`,
				`\bno es lo que (pedi|ordene|compre)\b`,
				`\b(retraso|retrasad[oa])\b`,
				`\b(never arrived|not arrived|hasn't arrived|damaged|broken|wrong item|lost package)\b`,
			),
		},
		{
			Type:       model.IntentDeliveryDate,
			Confidence: 0.9,
			Patterns: patterns(
				`\bcuando (me )?(llega|llegara|llegaria|llegan|llegaran)\b`,
				`\bcuando (lo |la |los )?(recibo|recibire|recibiria)\b`,
				`\bfecha (estimada )?de (entrega|llegada)\b`,
				`\bcuanto (tarda|tardara|demora|demorara)\b`,
				`\b(when will (it|my order) arrive|delivery date)\b`,
			),
		},
		{
			Type:       model.IntentOrderStatus,
			Confidence: 0.9,
			Patterns: patterns(
				`\bdonde (esta|estan|va) (mi|mis|el) (pedido|pedidos|orden|compra|paquete)\b`,
				`\b(estado|estatus|status) (de|del) (mi )?(pedido|orden|compra)\b`,
				`\b(que|como) (pasa|paso|va) con (mi|el) (pedido|orden|compra)\b`,
				`\bya (salio|enviaron|se envio|mandaron) (mi|el) (pedido|orden|paquete)\b`,
				`\b(where is my order|order status)\b`,
			),
		},
		{
			Type:       model.IntentReturnRequest,
			Confidence: 0.88,
			Patterns: patterns(
				`\b(devolver|devolucion|devoluciones|reembolso|reembolsar)\b`,
				`\b(cambiar (la )?talla|cambio de talla)\b`,
				`\b(refund|return)\b`,
			),
		},
		{
			Type:       model.IntentStockInquiry,
			Confidence: 0.85,
			Patterns: patterns(
				`\b(tienen|hay|queda|quedan) (stock|existencias)\b`,
				`\b(esta|estan) disponibles?\b`,
				`\b(tienen|hay) (la |el )?(talla|color)\b`,
				`\bcuando (vuelve|volvera|habra)\b.*\bstock\b`,
				`\b(agotad[oa]s?|in stock)\b`,
			),
		},
		{
			Type:       model.IntentCancellation,
			Confidence: 0.9,
			Patterns: patterns(
				`\b(cancelar|cancelacion|anular|cancel)\b`,
			),
		},
		{
			Type:       model.IntentAddressChange,
			Confidence: 0.88,
			Patterns: patterns(
				`\b(cambiar|actualizar|corregir) (la |mi )?direccion\b`,
				`\bcambio de direccion\b`,
				`\bdireccion (de envio )?(equivocada|incorrecta|mal)\b`,
				`\bchange (my |the )?address\b`,
			),
		},
	}
}

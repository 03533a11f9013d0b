package autoresponse

import (
	"fmt"
	"strings"
	"time"

	"github.com/capitalize-ai/support-console/internal/fulfillment"
	"github.com/capitalize-ai/support-console/internal/model"
)

const dateLayout = "02/01/2006"

// Confidence multipliers for templates that only ask for more information.
const (
	missingOrderFactor = 0.6
	noTrackingFactor   = 0.9
)

var (
	actionViewOrder         = model.Action{ID: "view_order", Label: "Ver pedido", Priority: model.PriorityNormal}
	actionSendTracking      = model.Action{ID: "send_tracking", Label: "Enviar seguimiento", Priority: model.PriorityNormal}
	actionAskOrderID        = model.Action{ID: "request_order_id", Label: "Pedir número de pedido", Priority: model.PriorityNormal}
	actionOpenClaim         = model.Action{ID: "open_claim", Label: "Abrir incidencia", Priority: model.PriorityHigh}
	actionContactProvider   = model.Action{ID: "contact_provider", Label: "Contactar proveedor", Priority: model.PriorityHigh}
	actionEscalateDelay     = model.Action{ID: "escalate_delay", Label: "Escalar retraso", Priority: model.PriorityHigh}
	actionOfferCompensation = model.Action{ID: "offer_compensation", Label: "Ofrecer compensación", Priority: model.PriorityHigh}
	actionCancelOrder       = model.Action{ID: "cancel_order", Label: "Cancelar pedido", Priority: model.PriorityHigh}
	actionUpdateAddress     = model.Action{ID: "update_address", Label: "Actualizar dirección", Priority: model.PriorityHigh}
	actionStartReturn       = model.Action{ID: "start_return", Label: "Iniciar devolución", Priority: model.PriorityNormal}
	actionCheckStock        = model.Action{ID: "check_stock", Label: "Consultar stock", Priority: model.PriorityNormal}
)

func greeting(cc *model.CustomerContext) string {
	if cc != nil && cc.Name != "" {
		return "Hola " + firstName(cc.Name) + ", "
	}
	return "Hola, "
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func estimateText(v orderView) string {
	switch {
	case v.estMin != nil && v.estMax != nil:
		return fmt.Sprintf("La entrega estimada es entre el %s y el %s.", formatDate(v.estMin), formatDate(v.estMax))
	case v.estMax != nil:
		return fmt.Sprintf("La entrega estimada es antes del %s.", formatDate(v.estMax))
	case v.estMin != nil:
		return fmt.Sprintf("La entrega estimada es a partir del %s.", formatDate(v.estMin))
	}
	return ""
}

func trackingText(v orderView) string {
	if !v.hasTracking {
		return ""
	}
	text := "Número de seguimiento: " + v.tracking.TrackingNumber
	if v.tracking.Carrier != "" {
		text += " (" + v.tracking.Carrier + ")"
	}
	text += "."
	if v.tracking.TrackingURL != "" {
		text += " Puedes seguir el envío aquí: " + v.tracking.TrackingURL
	}
	return text
}

func adminNote(v orderView) string {
	parts := []string{
		fmt.Sprintf("order=%d", v.order.ID),
		"status=" + v.status,
		"source=" + string(v.source),
	}
	if v.order.ExternalID != "" {
		parts = append(parts, "external="+v.order.ExternalID)
	}
	if v.hasTracking {
		parts = append(parts, "tracking="+v.tracking.TrackingNumber)
	}
	if v.estMax != nil {
		parts = append(parts, "est_max="+v.estMax.Format(time.RFC3339))
	}
	if v.degraded {
		parts = append(parts, "live_status=unavailable")
	}
	return strings.Join(parts, " ")
}

func orderMetadata(in model.Intent, v orderView) model.SuggestionMetadata {
	return model.SuggestionMetadata{
		Intent:      in.Type,
		OrderID:     v.order.ID,
		HasTracking: v.hasTracking,
		Source:      v.source,
	}
}

func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func orderStatusSuggestions(in model.Intent, cc *model.CustomerContext, v orderView, confidence float64) []model.Suggestion {
	text := join(
		fmt.Sprintf("%stu pedido #%d está %s.", greeting(cc), v.order.ID, fulfillment.TranslateStatus(v.status)),
		trackingText(v),
		estimateText(v),
	)
	actions := []model.Action{actionViewOrder}
	if v.hasTracking {
		actions = append(actions, actionSendTracking)
	}
	return []model.Suggestion{{
		Text:             text,
		AdminNote:        adminNote(v),
		Confidence:       confidence,
		SuggestedActions: actions,
		Metadata:         orderMetadata(in, v),
	}}
}

func trackingSuggestions(in model.Intent, cc *model.CustomerContext, v orderView, confidence float64) []model.Suggestion {
	if v.hasTracking {
		return []model.Suggestion{{
			Text:             join(fmt.Sprintf("%stu pedido #%d ya fue enviado.", greeting(cc), v.order.ID), trackingText(v)),
			AdminNote:        adminNote(v),
			Confidence:       confidence,
			SuggestedActions: []model.Action{actionSendTracking, actionViewOrder},
			Metadata:         orderMetadata(in, v),
		}}
	}
	return []model.Suggestion{{
		Text: join(
			fmt.Sprintf("%stu pedido #%d todavía no tiene número de seguimiento porque está %s.",
				greeting(cc), v.order.ID, fulfillment.TranslateStatus(v.status)),
			"Te lo enviaremos en cuanto salga de nuestro almacén.",
			estimateText(v),
		),
		AdminNote:        adminNote(v),
		Confidence:       confidence * noTrackingFactor,
		SuggestedActions: []model.Action{actionViewOrder},
		Metadata:         orderMetadata(in, v),
	}}
}

func deliveryDateSuggestions(in model.Intent, cc *model.CustomerContext, v orderView, confidence float64) []model.Suggestion {
	estimate := estimateText(v)
	if estimate == "" {
		estimate = "En cuanto tengamos una fecha estimada de entrega te avisaremos."
		confidence *= noTrackingFactor
	}
	return []model.Suggestion{{
		Text: join(
			fmt.Sprintf("%stu pedido #%d está %s.", greeting(cc), v.order.ID, fulfillment.TranslateStatus(v.status)),
			estimate,
			trackingText(v),
		),
		AdminNote:        adminNote(v),
		Confidence:       confidence,
		SuggestedActions: []model.Action{actionViewOrder},
		Metadata:         orderMetadata(in, v),
	}}
}

func deliveryProblemSuggestions(in model.Intent, cc *model.CustomerContext, v orderView, confidence float64) []model.Suggestion {
	var body string
	switch in.ExtractedFields.ProblemType {
	case model.ProblemDamaged:
		body = fmt.Sprintf("sentimos mucho que tu pedido #%d haya llegado en mal estado. ¿Podrías enviarnos una foto del producto y del embalaje? Así gestionamos la reposición lo antes posible.", v.order.ID)
	case model.ProblemWrongItem, model.ProblemMissingItem:
		body = fmt.Sprintf("sentimos mucho el error con tu pedido #%d. ¿Nos envías una foto de lo que recibiste? Lo revisamos y te enviamos el artículo correcto.", v.order.ID)
	default:
		body = fmt.Sprintf("sentimos la espera con tu pedido #%d. Estamos revisando el envío con la empresa de transporte y te escribimos en cuanto tengamos novedades.", v.order.ID)
	}
	return []model.Suggestion{{
		Text:             join(greeting(cc)+body, trackingText(v)),
		AdminNote:        join(adminNote(v), "problem="+in.ExtractedFields.ProblemType),
		Confidence:       confidence,
		SuggestedActions: []model.Action{actionOpenClaim, actionContactProvider, actionViewOrder},
		Metadata:         orderMetadata(in, v),
	}}
}

func inProductionOrShipped(status string) bool {
	switch strings.ToLower(status) {
	case model.FulfillmentInProcess, model.FulfillmentPartial, model.FulfillmentFulfilled, "shipped", "delivered":
		return true
	}
	return false
}

func cancellationSuggestions(in model.Intent, cc *model.CustomerContext, v orderView, confidence float64) []model.Suggestion {
	if inProductionOrShipped(v.status) {
		return []model.Suggestion{{
			Text: fmt.Sprintf("%stu pedido #%d ya está %s, así que no podemos cancelarlo. Cuando lo recibas puedes solicitar una devolución y te reembolsaremos el importe.",
				greeting(cc), v.order.ID, fulfillment.TranslateStatus(v.status)),
			AdminNote:        adminNote(v),
			Confidence:       confidence,
			SuggestedActions: []model.Action{actionStartReturn, actionViewOrder},
			Metadata:         orderMetadata(in, v),
		}}
	}
	return []model.Suggestion{{
		Text:             fmt.Sprintf("%shemos recibido tu solicitud para cancelar el pedido #%d. Un agente la confirmará en breve y te avisaremos del reembolso.", greeting(cc), v.order.ID),
		AdminNote:        adminNote(v),
		Confidence:       confidence,
		SuggestedActions: []model.Action{actionCancelOrder, actionViewOrder},
		Metadata:         orderMetadata(in, v),
	}}
}

func addressChangeSuggestions(in model.Intent, cc *model.CustomerContext, v orderView, confidence float64) []model.Suggestion {
	if inProductionOrShipped(v.status) && v.hasTracking {
		return []model.Suggestion{{
			Text: join(
				fmt.Sprintf("%stu pedido #%d ya fue enviado, por lo que no podemos cambiar la dirección desde aquí. Puedes contactar con la empresa de transporte con tu número de seguimiento.", greeting(cc), v.order.ID),
				trackingText(v),
			),
			AdminNote:        adminNote(v),
			Confidence:       confidence,
			SuggestedActions: []model.Action{actionContactProvider, actionViewOrder},
			Metadata:         orderMetadata(in, v),
		}}
	}
	return []model.Suggestion{{
		Text:             fmt.Sprintf("%spor favor indícanos la nueva dirección completa (calle, número, código postal y ciudad) para tu pedido #%d y la actualizamos.", greeting(cc), v.order.ID),
		AdminNote:        adminNote(v),
		Confidence:       confidence,
		SuggestedActions: []model.Action{actionUpdateAddress, actionViewOrder},
		Metadata:         orderMetadata(in, v),
	}}
}

func delaySuggestion(in model.Intent, cc *model.CustomerContext, v orderView, confidence float64, now time.Time) model.Suggestion {
	days := fulfillment.DaysLate(v.estMax, now)
	note := join(adminNote(v), fmt.Sprintf("days_late=%d", days))
	return model.Suggestion{
		Text: join(
			fmt.Sprintf("%slo sentimos mucho: tu pedido #%d debía llegar antes del %s y todavía está %s.",
				greeting(cc), v.order.ID, formatDate(v.estMax), fulfillment.TranslateStatus(v.status)),
			"Ya estamos revisándolo con nuestro proveedor y te escribiremos hoy mismo con una solución.",
		),
		AdminNote:  note,
		Confidence: confidence * 0.95,
		Metadata:   orderMetadata(in, v),
	}
}

var delayActions = []model.Action{actionEscalateDelay, actionContactProvider, actionOfferCompensation}

// markDelayed flags a suggestion as delayed and puts the elevated-priority
// actions first.
func markDelayed(s *model.Suggestion) {
	s.Metadata.Delayed = true
	actions := append([]model.Action(nil), delayActions...)
	for _, a := range s.SuggestedActions {
		dup := false
		for _, d := range delayActions {
			if a.ID == d.ID {
				dup = true
				break
			}
		}
		if !dup {
			actions = append(actions, a)
		}
	}
	s.SuggestedActions = actions
}

func missingOrderSuggestion(in model.Intent, cc *model.CustomerContext) model.Suggestion {
	text := greeting(cc) + "para ayudarte necesitamos el número de tu pedido. ¿Nos lo indicas? Lo encontrarás en el correo de confirmación de compra."
	note := "no matching order in customer context"
	if cc == nil {
		note = "customer context unavailable"
	} else if in.ExtractedFields.OrderID != 0 {
		text = fmt.Sprintf("%sno encontramos el pedido #%d asociado a tu cuenta. ¿Puedes confirmar el número o el correo con el que hiciste la compra?", greeting(cc), in.ExtractedFields.OrderID)
		note = fmt.Sprintf("order %d not found in customer context", in.ExtractedFields.OrderID)
	}
	return model.Suggestion{
		Text:             text,
		AdminNote:        note,
		Confidence:       in.Confidence * missingOrderFactor,
		SuggestedActions: []model.Action{actionAskOrderID},
		Metadata:         model.SuggestionMetadata{Intent: in.Type, OrderID: in.ExtractedFields.OrderID, Source: model.SourceNone},
	}
}

func returnSuggestions(in model.Intent, cc *model.CustomerContext) []model.Suggestion {
	meta := model.SuggestionMetadata{Intent: in.Type, OrderID: in.ExtractedFields.OrderID, Source: model.SourceNone}

	if in.ExtractedFields.OrderID == 0 {
		return []model.Suggestion{{
			Text:             greeting(cc) + "para gestionar tu devolución necesitamos el número de pedido, el producto que quieres devolver y el motivo. Tienes 30 días desde la entrega para solicitarla.",
			AdminNote:        "return request without order id",
			Confidence:       in.Confidence,
			SuggestedActions: []model.Action{actionAskOrderID, actionStartReturn},
			Metadata:         meta,
		}}
	}

	if cc != nil {
		for _, r := range cc.Returns {
			if r.OrderID == in.ExtractedFields.OrderID {
				return []model.Suggestion{{
					Text:             fmt.Sprintf("%sya tenemos una devolución registrada para tu pedido #%d y su estado es: %s. Te avisaremos en cuanto haya novedades.", greeting(cc), r.OrderID, r.Status),
					AdminNote:        fmt.Sprintf("existing return=%d status=%s", r.ID, r.Status),
					Confidence:       in.Confidence,
					SuggestedActions: []model.Action{actionViewOrder},
					Metadata:         meta,
				}}
			}
		}
	}

	sizeHint := ""
	if in.ExtractedFields.Size != "" {
		sizeHint = fmt.Sprintf(" Si prefieres cambiarlo por otra talla distinta de la %s, indícanos cuál.", in.ExtractedFields.Size)
	}
	return []model.Suggestion{{
		Text:             fmt.Sprintf("%shemos recibido tu solicitud de devolución del pedido #%d. ¿Nos cuentas el motivo y qué producto quieres devolver?%s", greeting(cc), in.ExtractedFields.OrderID, sizeHint),
		AdminNote:        fmt.Sprintf("return request order=%d", in.ExtractedFields.OrderID),
		Confidence:       in.Confidence,
		SuggestedActions: []model.Action{actionStartReturn, actionViewOrder},
		Metadata:         meta,
	}}
}

func stockSuggestions(in model.Intent, cc *model.CustomerContext) []model.Suggestion {
	text := greeting(cc) + "¿nos indicas qué producto te interesa y en qué talla? Lo consultamos y te confirmamos la disponibilidad."
	if in.ExtractedFields.Size != "" {
		text = fmt.Sprintf("%s¿nos indicas qué producto te interesa? Consultamos la disponibilidad en talla %s y te respondemos enseguida.", greeting(cc), in.ExtractedFields.Size)
	}
	return []model.Suggestion{{
		Text:             text,
		AdminNote:        "stock inquiry size=" + in.ExtractedFields.Size,
		Confidence:       in.Confidence,
		SuggestedActions: []model.Action{actionCheckStock},
		Metadata:         model.SuggestionMetadata{Intent: in.Type, Source: model.SourceNone},
	}}
}

func generalSuggestions(in model.Intent, cc *model.CustomerContext) []model.Suggestion {
	return []model.Suggestion{{
		Text:       greeting(cc) + "gracias por escribirnos. ¿En qué podemos ayudarte?",
		Confidence: in.Confidence,
		Metadata:   model.SuggestionMetadata{Intent: in.Type, Source: model.SourceNone},
	}}
}

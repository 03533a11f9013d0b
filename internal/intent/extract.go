package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/capitalize-ai/support-console/internal/model"
)

var (
	orderIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:pedido|orden|order|compra)\s*(?:n(?:o|um|umero)?\.?\s*)?#?\s*(\d{3,10})\b`),
		regexp.MustCompile(`#\s*(\d{3,10})\b`),
	}
	trackingCandidate = regexp.MustCompile(`\b[A-Za-z0-9]{10,30}\b`)
	sizePatterns      = []*regexp.Regexp{
		regexp.MustCompile(`\btalla\s+(xxs|xs|s|m|l|xl|xxl|xxxl|\d{2})\b`),
		regexp.MustCompile(`\bsize\s+(xxs|xs|s|m|l|xl|xxl|xxxl|\d{2})\b`),
		regexp.MustCompile(`\b(xxs|xs|xl|xxl|xxxl)\b`),
	}
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Checked in order; the first keyword hit decides the problem type.
	problemKeywords = []struct {
		problem  string
		keywords []string
	}{
		{model.ProblemDamaged, []string{"roto", "rota", "danad", "defectuos", "damaged", "broken"}},
		{model.ProblemLost, []string{"perdido", "extraviado", "se perdio", "se extravio", "lost"}},
		{model.ProblemWrongItem, []string{"equivocad", "incorrect", "erroneo", "no es lo que", "wrong item"}},
		{model.ProblemMissingItem, []string{"falta", "faltan", "incompleto", "missing"}},
		{model.ProblemDelayed, []string{"no ha llegado", "no han llegado", "no me llego", "no llego", "no he recibido", "retras", "never arrived", "not arrived"}},
	}
)

// extract runs the best-effort field pass for an intent type. Missing fields
// are left at their zero value.
func extract(t model.IntentType, raw, normalized string) model.ExtractedFields {
	var f model.ExtractedFields

	f.OrderID = extractOrderID(normalized)
	f.Email = emailPattern.FindString(raw)

	switch t {
	case model.IntentTrackingNumber:
		f.TrackingNumber = extractTracking(raw, f.OrderID)
	case model.IntentDeliveryProblem:
		f.TrackingNumber = extractTracking(raw, f.OrderID)
		f.ProblemType = extractProblem(normalized)
	case model.IntentReturnRequest, model.IntentStockInquiry:
		f.Size = extractSize(normalized)
	}
	return f
}

func extractOrderID(text string) int64 {
	for _, p := range orderIDPatterns {
		m := p.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return id
		}
	}
	return 0
}

func extractTracking(raw string, orderID int64) string {
	for _, candidate := range trackingCandidate.FindAllString(raw, -1) {
		token := strings.ToUpper(candidate)
		if orderID != 0 && token == strconv.FormatInt(orderID, 10) {
			continue
		}
		hasDigit, hasLetter := false, false
		for _, r := range token {
			switch {
			case r >= '0' && r <= '9':
				hasDigit = true
			case r >= 'A' && r <= 'Z':
				hasLetter = true
			}
		}
		if hasDigit && (hasLetter || len(token) >= 12) {
			return token
		}
	}
	return ""
}

func extractSize(text string) string {
	for _, p := range sizePatterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 {
			return strings.ToUpper(m[1])
		}
	}
	return ""
}

func extractProblem(text string) string {
	for _, pk := range problemKeywords {
		for _, kw := range pk.keywords {
			if strings.Contains(text, kw) {
				return pk.problem
			}
		}
	}
	return ""
}

package reconcile

import (
	"time"

	"github.com/capitalize-ai/support-console/internal/model"
)

// EchoWindow bounds the creation-time distance between a provisional message
// and the confirmed message that replaces it.
const EchoWindow = 60 * time.Second

// Reconciliation outcomes, used as metric labels.
const (
	outcomeAppended  = "appended"
	outcomeReplaced  = "replaced"
	outcomeDuplicate = "duplicate"
	outcomeDiscarded = "discarded"
)

func indexOfID(log []model.Message, id string) int {
	if id == "" {
		return -1
	}
	for i := range log {
		if log[i].ID == id {
			return i
		}
	}
	return -1
}

// isEcho reports whether confirmed is the server copy of the provisional p.
func isEcho(p, confirmed model.Message) bool {
	if !p.IsProvisional() || p.SenderType != model.SenderAgent || confirmed.SenderType != model.SenderAgent {
		return false
	}
	if p.Content != confirmed.Content {
		return false
	}
	d := confirmed.CreatedAt.Sub(p.CreatedAt)
	if d < 0 {
		d = -d
	}
	return d < EchoWindow
}

// upsertByID replaces a message with the same id in place, else appends.
func upsertByID(log []model.Message, msg model.Message) ([]model.Message, string) {
	if i := indexOfID(log, msg.ID); i >= 0 {
		log[i] = msg
		return log, outcomeDuplicate
	}
	return append(log, msg), outcomeAppended
}

// reconcileAgentMessage applies a confirmed agent message: a redelivered id
// is replaced in place, the oldest matching provisional is replaced in place,
// anything else is appended.
func reconcileAgentMessage(log []model.Message, msg model.Message) ([]model.Message, string) {
	if i := indexOfID(log, msg.ID); i >= 0 {
		log[i] = msg
		return log, outcomeDuplicate
	}
	for i := range log {
		if isEcho(log[i], msg) {
			log[i] = msg
			return log, outcomeReplaced
		}
	}
	return append(log, msg), outcomeAppended
}

// confirmedSuperset reports whether fetched holds every confirmed message of
// current and strictly more.
func confirmedSuperset(current, fetched []model.Message) bool {
	ids := make(map[string]struct{}, len(fetched))
	for _, m := range fetched {
		ids[m.ID] = struct{}{}
	}
	confirmed := 0
	for _, m := range current {
		if m.IsProvisional() {
			continue
		}
		confirmed++
		if _, ok := ids[m.ID]; !ok {
			return false
		}
	}
	return len(fetched) > confirmed
}

// replaceAuthoritative returns auth followed by the messages of current that
// auth does not account for: unconfirmed provisionals and confirmed messages
// newer than anything in auth.
func replaceAuthoritative(current, auth []model.Message) []model.Message {
	out := make([]model.Message, len(auth), len(auth)+len(current))
	copy(out, auth)

	ids := make(map[string]struct{}, len(auth))
	var newest time.Time
	for _, m := range auth {
		ids[m.ID] = struct{}{}
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}

	for _, m := range current {
		if _, ok := ids[m.ID]; ok {
			continue
		}
		if m.IsProvisional() {
			if !echoedIn(m, auth) {
				out = append(out, m)
			}
			continue
		}
		if m.CreatedAt.After(newest) {
			out = append(out, m)
		}
	}
	return out
}

func echoedIn(p model.Message, log []model.Message) bool {
	for _, m := range log {
		if !m.IsProvisional() && isEcho(p, m) {
			return true
		}
	}
	return false
}

func setDelivery(log []model.Message, id string, d model.Delivery, at *time.Time) bool {
	i := indexOfID(log, id)
	if i < 0 {
		return false
	}
	log[i].Delivery = d
	if at != nil {
		log[i].CreatedAt = *at
	}
	return true
}

func lastContent(log []model.Message) string {
	if len(log) == 0 {
		return ""
	}
	return log[len(log)-1].Content
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// mergeConversation folds a server copy into the current entry. Identity,
// status and assignment come from the server; the message list is only
// replaced when the server copy is a strict superset of what is stored.
func mergeConversation(cur *model.Conversation, in model.Conversation) {
	if in.UserID != "" {
		cur.UserID = in.UserID
	}
	if in.GuestID != "" {
		cur.GuestID = in.GuestID
	}
	if in.Status != "" {
		cur.Status = in.Status
	}
	if in.AgentID != nil {
		id := *in.AgentID
		cur.AgentID = &id
	}
	if in.AgentName != nil {
		name := *in.AgentName
		cur.AgentName = &name
	}
	if cur.CreatedAt.IsZero() {
		cur.CreatedAt = in.CreatedAt
	}
	cur.UpdatedAt = laterOf(cur.UpdatedAt, in.UpdatedAt)
	if in.UnreadCount > cur.UnreadCount {
		cur.UnreadCount = in.UnreadCount
	}

	if len(in.Messages) > 0 && confirmedSuperset(cur.Messages, in.Messages) {
		cur.Messages = replaceAuthoritative(cur.Messages, in.Messages)
	}
	if last := lastContent(cur.Messages); last != "" {
		cur.LastMessage = last
	} else if in.LastMessage != "" {
		cur.LastMessage = in.LastMessage
	}
	cur.Provisional = false
}

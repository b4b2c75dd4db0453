package exchange

import "github.com/zhouzirui/wise-mentor/backend/internal/model/chat"

// Outcome is what a transcript snapshot says about one exchange.
type Outcome struct {
	Text   string // cumulative reply, or the error text once failed
	Done   bool
	Failed bool
}

// Resolve reads the state of t from snap. An exchange is done once its
// placeholder stopped streaming or was dropped; it failed when an assistant
// error message directly follows it.
func (t Ticket) Resolve(snap chat.Snapshot) Outcome {
	anchor := -1
	var placeholder *chat.Message
	for i := range snap.Messages {
		switch snap.Messages[i].ID {
		case t.PlaceholderID:
			anchor = i
			placeholder = &snap.Messages[i]
		case t.User.ID:
			if anchor < 0 {
				anchor = i
			}
		}
	}
	if anchor < 0 {
		return Outcome{}
	}

	if placeholder != nil && placeholder.Streaming {
		return Outcome{Text: placeholder.Text}
	}

	if next := anchor + 1; next < len(snap.Messages) && snap.Messages[next].Role == chat.RoleAssistant {
		return Outcome{Text: snap.Messages[next].Text, Done: true, Failed: true}
	}

	if placeholder == nil {
		// dropped without an error message yet; still settling
		return Outcome{}
	}
	return Outcome{Text: placeholder.Text, Done: true}
}

package model

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// QAPair is one resolved (question, answer) exchange reconstructed from the
// turn history, used to condense a follow-up into a standalone question.
type QAPair struct {
	Question string
	Answer   string
}

// PairTurns walks an ordered turn history and pairs each user turn with the
// assistant turn that follows it. Dangling turns are dropped.
func PairTurns(history []ChatTurn) []QAPair {
	pairs := make([]QAPair, 0, len(history)/2)
	var pending *QAPair
	for _, turn := range history {
		switch turn.Role {
		case RoleUser:
			pending = &QAPair{Question: turn.Content}
		case RoleAssistant:
			if pending != nil {
				pending.Answer = turn.Content
				pairs = append(pairs, *pending)
				pending = nil
			}
		}
	}
	return pairs
}

package forum

import (
	"fmt"
	"strings"
)

// HistoryWindow è il numero di interventi recenti citati nel prompt
const HistoryWindow = 4

const basePrompt = "请围绕上述主题分享你的洞见，语气自然、含蓄，在潜台词中体现你对其他伙伴观点的理解；无需直接说明引用来源。"

// RecentWindow restituisce al più gli ultimi n elementi dello storico
func RecentWindow(history []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return append([]string(nil), history...)
}

// PeerGuidance costruisce il blocco di contesto: l'elenco dei partecipanti
// in apertura, altrimenti gli estratti recenti da commentare.
func PeerGuidance(recent, participants []string) string {
	if len(recent) == 0 {
		return fmt.Sprintf(
			"参与者名单：%s。你是开场者之一，请给出鲜明立场，同时埋下可供其他伙伴延伸的线索。",
			strings.Join(participants, "、"),
		)
	}
	return fmt.Sprintf(
		"已有观点摘录：\n%s\n请至少点名回应其中一位成员的观点，可引用对方的具体主张或语气，务必使用真实姓名或身份称谓，避免出现笼统表达。",
		strings.Join(recent, "\n"),
	)
}

// BuildPrompt compone il prompt di un turno
func BuildPrompt(topic string, recent, participants []string, budget LengthBudget) string {
	return fmt.Sprintf(
		"讨论主题：《%s》。%s\n%s\n%s\n请保持角色设定，言之有物而不过度赘述。",
		topic, basePrompt, PeerGuidance(recent, participants), budget.Guidance(),
	)
}

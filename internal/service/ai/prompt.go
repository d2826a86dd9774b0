package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
)

// historyWindow is how many prior messages accompany each prompt.
const historyWindow = 3

// systemPrompt frames every generation call.
const systemPrompt = `คุณคือผู้ช่วยของร้านขายบัตรอีเวนต์ ตอบเป็นภาษาไทยอย่างสุภาพและกระชับ
ใช้เฉพาะข้อมูลที่ได้รับในบริบทเท่านั้น ห้ามแต่งชื่องาน ราคา หรือจำนวนที่นั่งขึ้นเอง
ถ้าข้อมูลไม่พอ ให้บอกผู้ใช้ตรง ๆ และแนะนำให้ค้นหาหรือดูรายการอีเวนต์`

// PromptInput is everything one free-form turn contributes to the prompt.
type PromptInput struct {
	Summary   string
	Freshness string
	History   []chat.Message
	Input     string
	UserName  string
}

// BuildPrompt composes the user-side prompt: knowledge summary, the last
// historyWindow messages, data freshness, then the new input.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("ข้อมูลที่ระบบรู้ในขณะนี้:\n")
	if strings.TrimSpace(in.Summary) == "" {
		b.WriteString("(ยังไม่มีข้อมูล)\n")
	} else {
		b.WriteString(in.Summary)
		b.WriteString("\n")
	}

	if history := recentHistory(in.History, historyWindow); len(history) > 0 {
		b.WriteString("\nบทสนทนาล่าสุด:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", speakerLabel(msg.Role), strings.TrimSpace(msg.Content))
		}
	}

	if in.Freshness != "" {
		b.WriteString("\n")
		b.WriteString(in.Freshness)
		b.WriteString("\n")
	}

	if in.UserName != "" {
		fmt.Fprintf(&b, "\nผู้ใช้ชื่อ %s\n", in.UserName)
	}

	b.WriteString("\nคำถามของผู้ใช้: ")
	b.WriteString(strings.TrimSpace(in.Input))
	return b.String()
}

func recentHistory(messages []chat.Message, limit int) []chat.Message {
	filtered := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == chat.RoleUser || msg.Role == chat.RoleAssistant {
			filtered = append(filtered, msg)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

func speakerLabel(role chat.Role) string {
	if role == chat.RoleAssistant {
		return "ผู้ช่วย"
	}
	return "ผู้ใช้"
}

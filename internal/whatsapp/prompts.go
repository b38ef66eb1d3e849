package whatsapp

import (
	"fmt"
	"strings"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
	"github.com/Vovarama1992/ebeef-copilot/internal/copilot"
)

const customerReplyInstructions = `INSTRUÇÕES:
1. Responda de forma natural e amigável em português brasileiro
2. Seja útil e proativo em oferecer soluções
3. Se não souber algo específico, diga que vai verificar ou transfira para um atendente
4. Para reclamações ou problemas complexos, sugira transferir para um atendente humano digitando "ATENDENTE"
5. Mantenha respostas concisas (máximo 2-3 parágrafos)
6. Sempre que apropriado, sugira produtos ou promoções relevantes
7. Use emojis com moderação para criar uma experiência agradável`

const summarizePrompt = `Resuma a conversa de atendimento de forma concisa.
Inclua:
- Motivo principal do contato
- Problemas ou solicitações mencionados
- Status atual (resolvido, pendente, etc.)
- Ações necessárias

Formato: Resumo em 3-5 bullet points em português.`

// customerReplyPrompt builds the auto-responder system prompt; p may be nil
// when suggestion generation failed.
func customerReplyPrompt(p *copilot.Payload) string {
	var b strings.Builder
	b.WriteString(ai.CompanyContext)
	b.WriteString("\n")

	if p != nil {
		ci := p.CustomerInfo
		name := ci.Name
		if name == "" {
			name = "Não informado"
		}
		kind := "Cliente recorrente"
		if ci.IsNew {
			kind = "Novo cliente"
		}
		b.WriteString("\nINFORMAÇÕES DO CLIENTE:\n")
		fmt.Fprintf(&b, "- Nome: %s\n", name)
		fmt.Fprintf(&b, "- Tipo: %s\n", kind)
		fmt.Fprintf(&b, "- Total de pedidos: %d\n", ci.TotalOrders)
		fmt.Fprintf(&b, "- Total gasto: R$ %s\n", ci.TotalSpent)
		if len(p.PurchaseHistory) > 0 {
			names := make([]string, 0, len(p.PurchaseHistory))
			for _, h := range p.PurchaseHistory {
				names = append(names, h.ProductName)
			}
			fmt.Fprintf(&b, "- Produtos favoritos: %s\n", strings.Join(names, ", "))
		}
		if p.LastOrder != nil {
			fmt.Fprintf(&b, "- Último pedido: %s (%s)\n", p.LastOrder.OrderNumber, p.LastOrder.Status)
		}

		if len(p.Promotions) > 0 {
			b.WriteString("\nPROMOÇÕES ATIVAS:\n")
			for _, pr := range p.Promotions {
				fmt.Fprintf(&b, "- %s: %s (código: %s)\n", pr.Name, pr.Description, pr.Code)
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(customerReplyInstructions)
	return b.String()
}

func toAIHistory(history []Message) []ai.Message {
	out := make([]ai.Message, 0, len(history))
	for _, m := range history {
		role := ai.RoleAssistant
		if m.Sender == SenderUser {
			role = ai.RoleUser
		}
		out = append(out, ai.Message{Role: role, Text: m.Text})
	}
	return out
}

func transcript(history []Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		who := "Atendente"
		if m.Sender == SenderUser {
			who = "Cliente"
		}
		lines = append(lines, who+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

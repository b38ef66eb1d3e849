package copilot

import (
	"fmt"
	"strings"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
)

const operatorSuggestionPrompt = `Você é um assistente que ajuda operadores de atendimento da ebeef.
Gere uma sugestão de resposta profissional e personalizada.

%s

%s

INSTRUÇÕES:
- Gere uma resposta pronta para o operador usar ou adaptar
- Seja profissional mas amigável
- Personalize com base no contexto do cliente
- Mantenha a resposta concisa (2-3 frases)`

func operatorSuggestionRequest(message string, cc CustomerContext) ai.Request {
	return ai.Request{
		Purpose:      "operator_suggestion",
		SystemPrompt: fmt.Sprintf(operatorSuggestionPrompt, ai.CompanyContext, customerBrief(cc)),
		History:      []ai.Message{{Role: ai.RoleUser, Text: fmt.Sprintf("Mensagem do cliente: %q", message)}},
		MaxTokens:    200,
		Temperature:  0.7,
	}
}

func customerBrief(cc CustomerContext) string {
	name := cc.Customer.Name
	if name == "" {
		name = "Não identificado"
	}
	kind := "Recorrente"
	if cc.IsNewCustomer {
		kind = "Novo"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cliente: %s\n", name)
	fmt.Fprintf(&b, "Tipo: %s (%d pedidos)\n", kind, cc.TotalOrders)
	if len(cc.FavoriteProducts) > 0 {
		names := make([]string, 0, len(cc.FavoriteProducts))
		for _, fp := range cc.FavoriteProducts {
			names = append(names, fp.Product.Name)
		}
		fmt.Fprintf(&b, "Favoritos: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}

const recommendationPrompt = `Você é um especialista em carnes e churrasco brasileiro.
Analise a conversa e o perfil do cliente para recomendar produtos.

PRODUTOS DISPONÍVEIS:
%s

PERFIL DO CLIENTE:
%s
Tipo: %s

Responda em JSON:
{
  "recommendations": [
    {"productName": "nome", "reason": "motivo da recomendação", "priority": 1-3}
  ],
  "conversationalSuggestion": "frase natural para sugerir ao cliente"
}`

func recommendationRequest(products []Product, cc CustomerContext, conversation []ai.Message) ai.Request {
	catalog := make([]string, 0, len(products))
	for _, p := range products {
		catalog = append(catalog, fmt.Sprintf("- %s (%s): %s - R$ %s", p.Name, p.Category, p.Description, FormatBRL(p.Price)))
	}

	profile := "Sem histórico"
	if len(cc.FavoriteProducts) > 0 {
		names := make([]string, 0, len(cc.FavoriteProducts))
		for _, fp := range cc.FavoriteProducts {
			names = append(names, fp.Product.Name)
		}
		profile = "Favoritos: " + strings.Join(names, ", ")
	}
	kind := "Cliente recorrente"
	if cc.IsNewCustomer {
		kind = "Novo cliente"
	}

	lines := make([]string, 0, len(conversation))
	for _, m := range conversation {
		lines = append(lines, m.Role+": "+m.Text)
	}

	return ai.Request{
		Purpose:      "recommendation",
		SystemPrompt: fmt.Sprintf(recommendationPrompt, strings.Join(catalog, "\n"), profile, kind),
		History:      []ai.Message{{Role: ai.RoleUser, Text: "Conversa recente:\n" + strings.Join(lines, "\n")}},
		MaxTokens:    300,
		Temperature:  0.7,
		JSON:         true,
	}
}

package whatsapp

import "strings"

// DefaultHandoffKeywords ask for a human.
var DefaultHandoffKeywords = []string{"atendente", "humano", "pessoa", "operador", "falar com alguem", "ajuda humana"}

const (
	HandoffMessage   = "Vou transferir você para um de nossos atendentes. Um momento, por favor! 🙋"
	TechnicalFailure = "Desculpe, tive um problema técnico. Digite \"atendente\" para falar com um humano. 🙏"
)

// NeedsHandoff reports whether text contains any keyword, ignoring case.
func NeedsHandoff(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

type replyRule struct {
	keywords []string
	reply    string
}

// First matching rule wins.
var replyRules = []replyRule{
	{
		keywords: []string{"oi", "olá", "bom dia", "boa tarde", "boa noite"},
		reply:    "Olá! 👋 Bem-vindo à ebeef! Sou o assistente virtual e estou aqui para ajudar você a encontrar as melhores carnes para seu churrasco. Como posso ajudar?",
	},
	{
		keywords: []string{"picanha", "carne", "corte"},
		reply:    "Temos cortes premium de alta qualidade! 🥩 Nossa Picanha Premium está por R$ 129,90/kg. Quer conhecer mais opções ou já fazer seu pedido?",
	},
	{
		keywords: []string{"preço", "quanto", "valor"},
		reply:    "Nossos preços variam conforme o corte. Picanha R$ 129,90/kg, Maminha R$ 69,90/kg, Filé Mignon R$ 109,90/kg. Qual corte te interessa?",
	},
	{
		keywords: []string{"entrega", "prazo", "frete"},
		reply:    "Fazemos entrega em 24-48 horas dependendo da sua região! 🚚 Me passa seu CEP que verifico a disponibilidade para você.",
	},
	{
		keywords: []string{"pedido", "comprar", "quero"},
		reply:    "Ótimo! Vou te ajudar com seu pedido. 📝 Qual corte e quantidade você gostaria? Posso sugerir nossa Picanha Premium, é a mais pedida!",
	},
	{
		keywords: []string{"promoção", "desconto", "oferta"},
		reply:    "Temos ótimas promoções! 🔥 Novos clientes ganham 10% com o código BEMVINDO. Quer conhecer nossas ofertas da semana?",
	},
}

const defaultReply = "Entendi! 😊 Estou aqui para ajudar com informações sobre nossos cortes, preços, entregas e pedidos. Como posso te ajudar especificamente? Se preferir, digite \"atendente\" para falar com um humano."

// RuleReply answers without a language model.
func RuleReply(text string) string {
	lower := strings.ToLower(text)
	for _, r := range replyRules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.reply
			}
		}
	}
	return defaultReply
}

package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

const IntentUnknown = "unknown"

// Intent is the model's reading of one customer message.
type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	SubIntent  *string `json:"subIntent"`
}

var knownIntents = map[string]bool{
	"greeting":        true,
	"product_inquiry": true,
	"order_status":    true,
	"complaint":       true,
	"support":         true,
	"purchase_intent": true,
	"recommendation":  true,
	"promotion":       true,
	"delivery":        true,
	"payment":         true,
	"goodbye":         true,
	"other":           true,
}

const classifyPrompt = `Você é um classificador de intenções para um e-commerce de carnes.
Classifique a mensagem do cliente em uma das seguintes categorias:

INTENÇÕES PRINCIPAIS:
- greeting: Saudação (oi, olá, bom dia)
- product_inquiry: Pergunta sobre produtos (preço, disponibilidade, cortes)
- order_status: Status do pedido (onde está, quando chega)
- complaint: Reclamação (problema, insatisfação)
- support: Pedido de ajuda geral
- purchase_intent: Intenção de compra (quero comprar, fazer pedido)
- recommendation: Pedindo recomendação (o que você sugere)
- promotion: Pergunta sobre promoções/descontos
- delivery: Pergunta sobre entrega (prazo, frete, região)
- payment: Pergunta sobre pagamento (formas, parcelamento)
- goodbye: Despedida (tchau, obrigado)
- other: Outros assuntos

Responda APENAS em JSON no formato:
{"intent": "categoria", "confidence": 0.0-1.0, "subIntent": "detalhamento opcional"}`

// Classify never fails: an unreachable model or an unparseable answer yields
// IntentUnknown with zero confidence.
func Classify(ctx context.Context, client AI, message string, logger *slog.Logger) Intent {
	unknown := Intent{Intent: IntentUnknown}
	if client == nil || !client.Available() {
		return unknown
	}

	raw, err := client.GetReply(ctx, Request{
		Purpose:      "classify",
		SystemPrompt: classifyPrompt,
		History:      []Message{{Role: RoleUser, Text: message}},
		MaxTokens:    100,
		Temperature:  0,
		JSON:         true,
	})
	if err != nil {
		logger.Warn("intent classification failed", "error", err)
		return unknown
	}

	var out Intent
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		logger.Warn("intent classification unparseable", "error", err)
		return unknown
	}
	if !knownIntents[out.Intent] {
		out.Intent = "other"
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	logger.Debug("intent classified", "intent", out.Intent, "confidence", out.Confidence)
	return out
}

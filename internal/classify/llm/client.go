// Package llm adapts an OpenAI-compatible chat completion API to the
// classify.Model port.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"gota/internal/classify"
	"gota/internal/core"
)

const DefaultModel = "gpt-4o-mini"

var ErrEmptyResponse = errors.New("llm: empty response")

type Client struct {
	model   string
	timeout time.Duration
	client  *openai.Client
}

// New creates a client. An empty baseURL keeps the library default.
func New(apiKey, baseURL, model string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		model:   model,
		timeout: timeout,
		client:  openai.NewClientWithConfig(config),
	}
}

// Complete forces a call to the registrar_gasto tool and returns its
// arguments. Providers that ignore tool choice and answer in plain content
// are accepted too; the classifier validates either form the same way.
func (c *Client) Complete(ctx context.Context, prompt classify.Prompt) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		Tools: []openai.Tool{ExpenseTool()},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: classify.ToolName},
		},
		Temperature: 0.1,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	for _, call := range msg.ToolCalls {
		if call.Function.Name == classify.ToolName && call.Function.Arguments != "" {
			return call.Function.Arguments, nil
		}
	}
	if msg.Content == "" {
		return "", ErrEmptyResponse
	}
	return msg.Content, nil
}

// ExpenseTool describes the classification output. The category enum is the
// closed taxonomy, so conforming providers cannot invent a label.
func ExpenseTool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        classify.ToolName,
			Description: "Registra un gasto interpretado del texto del usuario, o explica por qué no es un gasto.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"is_valid": {
						Type:        jsonschema.Boolean,
						Description: "false si el texto no es un gasto o le falta el monto.",
					},
					"reason": {
						Type:        jsonschema.String,
						Description: "Motivo para el usuario cuando is_valid es false.",
					},
					"amount": {
						Type:        jsonschema.Number,
						Description: "Monto total, mayor o igual a 1.",
					},
					"currency": {
						Type: jsonschema.String,
						Enum: []string{string(core.ARS), string(core.USD)},
					},
					"category": {
						Type:        jsonschema.String,
						Enum:        core.CategoryNames(),
						Description: "Exactamente una categoría de la lista.",
					},
					"description": {
						Type:        jsonschema.String,
						Description: "Descripción breve sin el monto, máximo 100 caracteres.",
					},
					"is_want": {
						Type:        jsonschema.Boolean,
						Description: "true=deseo, false=necesidad; null para Pago de Tarjetas.",
					},
					"payment_method": {
						Type: jsonschema.String,
						Enum: []string{string(core.Cash), string(core.Debit), string(core.Transfer), string(core.Credit)},
					},
					"card_id": {
						Type:        jsonschema.String,
						Description: "Id de la tarjeta del usuario para CREDIT o Pago de Tarjetas, null en otro caso.",
					},
					"date": {
						Type:        jsonschema.String,
						Description: "Fecha del gasto (YYYY-MM-DD).",
					},
				},
				Required: []string{"is_valid"},
			},
		},
	}
}

package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/utils"
)

const (
	classifySystemPrompt = `You are an expert email classifier. Analyze the provided email and categorize it into exactly one of the following labels: Interested, Meeting Booked, Not Interested, Spam, or Out of Office.
Respond only with a JSON object of the form {"category": "<label>"} and nothing else.`
	replySystemPrompt = "You are a helpful assistant that writes professional, relevant email replies. Based ONLY on the context provided and the original email, draft a professional and helpful reply. Be concise."
)

// OpenAIClient is an implementation of the LLMClient interface using OpenAI
type OpenAIClient struct {
	client         *openai.Client
	modelName      string
	embeddingModel openai.EmbeddingModel
	maxTokens      int
	temperature    float32
	topP           float32
	maxBodySize    int
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
}

type categoryResponse struct {
	Category string `json:"category"`
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	embeddingModel string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:         client,
		modelName:      modelName,
		embeddingModel: openai.EmbeddingModel(embeddingModel),
		maxTokens:      maxTokens,
		temperature:    temperature,
		topP:           topP,
		maxBodySize:    maxBodySize,
		logger:         logger,
		textProcessor:  textProcessor,
	}
}

// CategorizeEmail classifies an email into one of the closed category labels
func (c *OpenAIClient) CategorizeEmail(ctx context.Context, subject, body string) (core.Category, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	prompt := fmt.Sprintf("Subject: %s\n\nBody: %s", subject, processedBody)

	responseText, err := c.complete(ctx, classifySystemPrompt, prompt, 0.1)
	if err != nil {
		return core.CategoryUncategorized, err
	}

	var parsed categoryResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		return core.CategoryUncategorized, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}

	category, err := core.ParseCategory(parsed.Category)
	if err != nil {
		return core.CategoryUncategorized, fmt.Errorf("classifier returned invalid label: %w", err)
	}
	return category, nil
}

// GenerateReply drafts a reply to the email using the given context
func (c *OpenAIClient) GenerateReply(ctx context.Context, subject, body, replyContext string) (string, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	prompt := fmt.Sprintf(
		"Context: %s\n\nOriginal Email Subject: %s\n\nOriginal Email Body: %s\n\nPlease provide a professional email reply.",
		replyContext, subject, processedBody)

	return c.complete(ctx, replySystemPrompt, prompt, c.temperature)
}

// EmbedText computes an embedding vector for the text
func (c *OpenAIClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding with OpenAI: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response from OpenAI")
	}
	return resp.Data[0].Embedding, nil
}

func (c *OpenAIClient) complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
		TopP:        c.topP,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

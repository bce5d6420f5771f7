package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/utils"
)

const (
	classifySystemInstruction = "You are an expert email classifier. Your task is to analyze the provided email text and categorize it into one of the following labels: Interested, Meeting Booked, Not Interested, Spam, or Out of Office."
	replySystemInstruction    = "You are a helpful assistant that writes professional, relevant email replies. Based ONLY on the context provided and the original email, draft a professional and helpful reply. Be concise."
)

// GeminiClient is an implementation of the LLMClient interface using Google Gemini
type GeminiClient struct {
	client         *genai.Client
	classifyModel  *genai.GenerativeModel
	replyModel     *genai.GenerativeModel
	embeddingModel *genai.EmbeddingModel
	modelName      string
	maxBodySize    int
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
}

// categoryResponse is the structured classification response from the model
type categoryResponse struct {
	Category string `json:"category"`
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	embeddingModelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	labels := make([]string, 0, len(core.Categories))
	for _, c := range core.Categories {
		labels = append(labels, string(c))
	}

	classifyModel := client.GenerativeModel(modelName)
	classifyModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(classifySystemInstruction)},
	}
	classifyModel.ResponseMIMEType = "application/json"
	classifyModel.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category": {
				Type: genai.TypeString,
				Enum: labels,
			},
		},
	}

	replyModel := client.GenerativeModel(modelName)
	replyModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(replySystemInstruction)},
	}
	replyModel.SetTemperature(temperature)
	replyModel.SetTopP(topP)
	replyModel.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:         client,
		classifyModel:  classifyModel,
		replyModel:     replyModel,
		embeddingModel: client.EmbeddingModel(embeddingModelName),
		modelName:      modelName,
		maxBodySize:    maxBodySize,
		logger:         logger,
		textProcessor:  textProcessor,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// CategorizeEmail classifies an email into one of the closed category labels
func (c *GeminiClient) CategorizeEmail(ctx context.Context, subject, body string) (core.Category, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	prompt := fmt.Sprintf("Subject: %s\n\nBody: %s", subject, processedBody)

	resp, err := c.classifyModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return core.CategoryUncategorized, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	responseText, err := firstResponseText(resp)
	if err != nil {
		return core.CategoryUncategorized, err
	}

	var parsed categoryResponse
	if err := unmarshalLLMResponse(responseText, &parsed); err != nil {
		return core.CategoryUncategorized, err
	}

	category, err := core.ParseCategory(parsed.Category)
	if err != nil {
		return core.CategoryUncategorized, fmt.Errorf("classifier returned invalid label: %w", err)
	}
	return category, nil
}

// GenerateReply drafts a reply to the email using the given context
func (c *GeminiClient) GenerateReply(ctx context.Context, subject, body, replyContext string) (string, error) {
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)
	prompt := fmt.Sprintf(
		"Context: %s\n\nOriginal Email Subject: %s\n\nOriginal Email Body: %s\n\nPlease provide a professional email reply.",
		replyContext, subject, processedBody)

	resp, err := c.replyModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate reply with Gemini: %w", err)
	}

	return firstResponseText(resp)
}

// EmbedText computes an embedding vector for the text
func (c *GeminiClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.embeddingModel.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content with Gemini: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("empty embedding from Gemini")
	}
	return resp.Embedding.Values, nil
}

// firstResponseText extracts the text of the first candidate part
func firstResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
}

// unmarshalLLMResponse parses a JSON object out of the model output, falling
// back to extracting the outermost braces when the model wraps the JSON in
// prose.
func unmarshalLLMResponse(responseText string, v interface{}) error {
	if err := json.Unmarshal([]byte(responseText), v); err == nil {
		return nil
	}

	jsonStart := -1
	jsonEnd := -1
	for i := 0; i < len(responseText); i++ {
		if responseText[i] == '{' {
			jsonStart = i
			break
		}
	}
	for i := len(responseText) - 1; i >= 0; i-- {
		if responseText[i] == '}' {
			jsonEnd = i + 1
			break
		}
	}

	if jsonStart < 0 || jsonStart >= jsonEnd {
		return fmt.Errorf("failed to extract JSON from LLM response")
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd]), v); err != nil {
		return fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return nil
}

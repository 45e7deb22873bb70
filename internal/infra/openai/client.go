package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"

	// GroqBaseURL は Groq の OpenAI 互換エンドポイント
	GroqBaseURL = "https://api.groq.com/openai/v1"

	// GroqDefaultModel は Groq 利用時のデフォルトモデル
	GroqDefaultModel = "llama3-8b-8192"
)

// Client は OpenAI 互換の Chat Completions API を1回呼び出す Transport 実装
// リトライとバックオフは gateway.Gateway が担うため、SDK 側のリトライは無効化する
type Client struct {
	client openai.Client
	model  string
}

// ClientOption は Client 構築時のオプション
type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL は OpenAI 互換エンドポイントのベースURLを設定する
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient は HTTP クライアントを差し替える
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// NewClient はAPIキーとモデルを指定して Client を作成する
func NewClient(apiKey, model string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, gateway.ErrAPIKeyNotSet
	}

	if model == "" {
		model = DefaultModel
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(o.baseURL, "/")+"/"))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &Client{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// Send は Chat Completions API を1回呼び出す
func (c *Client) Send(ctx context.Context, req gateway.CompletionRequest) (string, string, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserContent),
		},
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", "", translateError(err)
	}

	if len(completion.Choices) == 0 {
		return "", "", fmt.Errorf("%w: no completion choices returned", gateway.ErrMalformedResponse)
	}

	responseModel := completion.Model
	if responseModel == "" {
		responseModel = model
	}

	return completion.Choices[0].Message.Content, responseModel, nil
}

// translateError は SDK のエラーを gateway のエラー分類に合わせて変換する
func translateError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("OpenAI API call failed: %w", &gateway.StatusError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
		})
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %v", gateway.ErrMalformedResponse, err)
	}

	return fmt.Errorf("OpenAI API call failed: %w", err)
}

// インターフェース実装の確認
var _ gateway.Transport = (*Client)(nil)

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrSendFailed возвращается, когда API чата отклонило запрос.
var ErrSendFailed = errors.New("chat transport send failed")

// SendOptions - необязательные параметры исходящего сообщения.
type SendOptions struct {
	// ReplyMarkup - одна из клавиатур: InlineKeyboardMarkup,
	// ReplyKeyboardMarkup или ReplyKeyboardRemove.
	ReplyMarkup interface{}
}

// Client - интерфейс чат-транспорта. Каждая отправка возвращает
// идентификатор исходящего сообщения.
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (int, error)
	SendLocation(ctx context.Context, chatID int64, lat, lon float64) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (int, error)
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) (int, error)
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// BotClient реализует Client поверх Telegram Bot API.
type BotClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewBotClient создаёт HTTP-клиент чат-транспорта.
func NewBotClient(baseURL, token string, timeout time.Duration) *BotClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BotClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiResponse описывает конверт ответа Bot API.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
}

// SendMessage отправляет текстовое сообщение.
func (c *BotClient) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (int, error) {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if opts != nil && opts.ReplyMarkup != nil {
		payload["reply_markup"] = opts.ReplyMarkup
	}
	return c.sendMessageCall(ctx, "sendMessage", payload)
}

// SendLocation отправляет геопозицию.
func (c *BotClient) SendLocation(ctx context.Context, chatID int64, lat, lon float64) (int, error) {
	return c.sendMessageCall(ctx, "sendLocation", map[string]interface{}{
		"chat_id":   chatID,
		"latitude":  lat,
		"longitude": lon,
	})
}

// SendPhoto пересылает фото по file_id.
func (c *BotClient) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (int, error) {
	return c.sendMessageCall(ctx, "sendPhoto", map[string]interface{}{
		"chat_id": chatID,
		"photo":   fileID,
		"caption": caption,
	})
}

// SendDocument пересылает документ по file_id.
func (c *BotClient) SendDocument(ctx context.Context, chatID int64, fileID, caption string) (int, error) {
	return c.sendMessageCall(ctx, "sendDocument", map[string]interface{}{
		"chat_id":  chatID,
		"document": fileID,
		"caption":  caption,
	})
}

// AnswerCallbackQuery подтверждает нажатие инлайн-кнопки.
func (c *BotClient) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	payload := map[string]interface{}{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	_, err := c.call(ctx, "answerCallbackQuery", payload)
	return err
}

// sendMessageCall выполняет метод, возвращающий Message, и достаёт message_id.
func (c *BotClient) sendMessageCall(ctx context.Context, method string, payload map[string]interface{}) (int, error) {
	result, err := c.call(ctx, method, payload)
	if err != nil {
		return 0, err
	}

	var msg Message
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("decode %s result: %w", method, err)
	}
	return msg.MessageID, nil
}

func (c *BotClient) call(ctx context.Context, method string, payload map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}

	if !envelope.OK {
		return nil, fmt.Errorf("%w: %s: %s", ErrSendFailed, method, envelope.Description)
	}
	return envelope.Result, nil
}

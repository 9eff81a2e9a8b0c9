package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUnavailable возвращается, когда геокодер не дал пригодного ответа.
var ErrUnavailable = errors.New("geocoder unavailable")

// Geocoder - интерфейс обратного геокодирования.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// NominatimClient реализует Geocoder поверх nominatim /reverse.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatimClient создаёт HTTP-клиент геокодера.
func NewNominatimClient(baseURL string, timeout time.Duration) *NominatimClient {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: "IceOrderBot/1.0 (mailto:shop@mrseyes.example)",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// Reverse возвращает читаемый адрес по координатам.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid geocoder base url: %w", err)
	}
	u.Path = u.Path + "/reverse"

	q := u.Query()
	q.Set("format", "json")
	q.Set("lat", formatCoord(lat))
	q.Set("lon", formatCoord(lon))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if payload.DisplayName == "" {
		return "", ErrUnavailable
	}
	return payload.DisplayName, nil
}

// FallbackAddress возвращает строку "lat, lon" - запасной адрес
// при недоступном геокодере.
func FallbackAddress(lat, lon float64) string {
	return formatCoord(lat) + ", " + formatCoord(lon)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

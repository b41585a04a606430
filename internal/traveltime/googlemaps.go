package traveltime

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"
)

const distanceMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// GoogleMapsClient performs travel-time lookups against the Distance Matrix
// API.
type GoogleMapsClient struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewGoogleMapsClient(apiKey string) *GoogleMapsClient {
	return &GoogleMapsClient{
		Endpoint: distanceMatrixURL,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: 3 * time.Second},
	}
}

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int    `json:"value"` // seconds
				Text  string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// TravelTimeMinutes queries the Distance Matrix API for the driving duration
// between two addresses, rounded up to whole minutes.
func (g *GoogleMapsClient) TravelTimeMinutes(fromAddress, toAddress string) (int, error) {
	if fromAddress == "" || toAddress == "" {
		return 0, ErrNoRoute
	}
	q := url.Values{}
	q.Set("origins", fromAddress)
	q.Set("destinations", toAddress)
	q.Set("mode", "driving")
	q.Set("units", "imperial")
	q.Set("key", g.APIKey)

	resp, err := g.Client.Get(g.Endpoint + "?" + q.Encode())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("traveltime: distance matrix status %d", resp.StatusCode)
	}

	var out distanceMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Status != "OK" || len(out.Rows) == 0 || len(out.Rows[0].Elements) == 0 {
		return 0, ErrNoRoute
	}
	el := out.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, ErrNoRoute
	}
	minutes := int(math.Ceil(float64(el.Duration.Value) / 60.0))
	if minutes <= 0 {
		return 0, ErrNoRoute
	}
	return minutes, nil
}

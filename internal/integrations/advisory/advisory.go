package advisory

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"fintrack/internal/config"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// Client fetches the recognized-location advisory feed, an XML document
// listing the locations the fraud rules treat as ordinary.
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new advisory client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.AdvisoryURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// FetchRecognizedLocations downloads and parses the advisory feed.
func (c *Client) FetchRecognizedLocations() ([]string, error) {
	if c.url == "" {
		return nil, fmt.Errorf("advisory URL not configured")
	}

	body, err := c.fetch()
	if err != nil {
		return nil, err
	}
	return c.parse(body)
}

func (c *Client) fetch() ([]byte, error) {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("advisory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read advisory response: %w", err)
	}

	c.log.Debugf("advisory XML response: %s", string(body))
	return body, nil
}

func (c *Client) parse(rawBody []byte) ([]string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse advisory XML: %w", err)
	}

	elements := doc.FindElements("//advisory/locations/location")
	if len(elements) == 0 {
		return nil, fmt.Errorf("no locations found in advisory feed")
	}

	locations := make([]string, 0, len(elements))
	for _, el := range elements {
		if text := el.Text(); text != "" {
			locations = append(locations, text)
		}
	}
	return locations, nil
}

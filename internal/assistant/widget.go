package assistant

import (
	"encoding/json"

	"github.com/majnioui/calc/internal/models"
)

const scriptBase = "https://web-chat.global.assistant.watson.appdomain.cloud/versions/"

// WidgetConfig is handed to the page so it can boot the chat widget.
type WidgetConfig struct {
	IntegrationID     string `json:"integrationID"`
	Region            string `json:"region"`
	ServiceInstanceID string `json:"serviceInstanceID"`
	ClientVersion     string `json:"clientVersion"`
	ScriptURL         string `json:"scriptURL"`
}

func NewWidgetConfig(integrationID, region, serviceInstanceID, clientVersion string) WidgetConfig {
	if clientVersion == "" {
		clientVersion = "latest"
	}
	return WidgetConfig{
		IntegrationID:     integrationID,
		Region:            region,
		ServiceInstanceID: serviceInstanceID,
		ClientVersion:     clientVersion,
		ScriptURL:         scriptBase + clientVersion + "/WatsonAssistantChatEntry.js",
	}
}

// Branch is the nearest-branch payload shared with the widget.
type Branch struct {
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Distance float64 `json:"distance"`
	PlaceID  string  `json:"place_id"`
	MapsURL  string  `json:"maps_url"`
}

// ContextVars are the values the widget reads back as context variables.
type ContextVars struct {
	LoanAmount *float64          `json:"loan_amount,omitempty"`
	Quote      *models.QuoteView `json:"quote,omitempty"`
	Branch     *Branch           `json:"branch,omitempty"`
}

func (c ContextVars) Encode() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// DecodeContext returns zero ContextVars for empty or malformed input.
func DecodeContext(s string) ContextVars {
	var c ContextVars
	if s == "" {
		return c
	}
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return ContextVars{}
	}
	return c
}

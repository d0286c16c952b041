// Package assistant extracts calculator actions from chat widget messages.
package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const FillLoanAmount = "fill_loan_amount"

var ErrInvalidMessage = errors.New("invalid assistant message")

// amountInText recovers the amount when the widget sends an unresolved variable.
var amountInText = regexp.MustCompile(`avec la valeur (\d+)`)

const messageSchema = `{
  "type": "object",
  "required": ["output"],
  "properties": {
    "output": {
      "type": "object",
      "required": ["generic"],
      "properties": {
        "generic": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "text": {"type": "string"},
              "user_defined": {
                "type": "object",
                "properties": {
                  "user_defined_type": {"type": "string"},
                  "amount": {"type": ["number", "string"]}
                }
              }
            }
          }
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(messageSchema)

type Message struct {
	Output struct {
		Generic []Generic `json:"generic"`
	} `json:"output"`
}

type Generic struct {
	Text        string       `json:"text,omitempty"`
	UserDefined *UserDefined `json:"user_defined,omitempty"`
}

type UserDefined struct {
	Type   string          `json:"user_defined_type"`
	Amount json.RawMessage `json:"amount,omitempty"`
}

// Action is one instruction for the calculator page.
type Action struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	Source string  `json:"source"` // "field" or "text"
}

// Parse validates raw against the message schema and returns the actions
// it carries, in order. Items that are not actions are ignored.
func Parse(raw []byte) ([]Action, error) {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidMessage, strings.Join(msgs, "; "))
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var actions []Action
	for i, g := range msg.Output.Generic {
		if g.UserDefined == nil || g.UserDefined.Type != FillLoanAmount {
			continue
		}
		amount, source, err := resolveAmount(g.UserDefined.Amount, g.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidMessage, i, err)
		}
		actions = append(actions, Action{Type: FillLoanAmount, Amount: amount, Source: source})
	}
	return actions, nil
}

func resolveAmount(raw json.RawMessage, text string) (float64, string, error) {
	if len(raw) > 0 {
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			return n, "field", nil
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			s = strings.TrimSpace(s)
			if !strings.Contains(s, "$") {
				if n, err := strconv.ParseFloat(s, 64); err == nil {
					return n, "field", nil
				}
				return 0, "", fmt.Errorf("amount %q is not a number", s)
			}
		}
	}

	if m := amountInText.FindStringSubmatch(text); len(m) > 1 {
		n, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return n, "text", nil
		}
	}
	return 0, "", errors.New("no amount in message")
}

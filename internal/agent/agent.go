package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bz888/roichat/internal/api/server/client"
	"github.com/bz888/roichat/internal/logger"
	"github.com/bz888/roichat/internal/report"
	"github.com/bz888/roichat/internal/roi"
)

const SystemPrompt = "You are an ROI assistant for a supply chain visibility platform.\n" +
	"Your job is to gather these fields from the conversation:\n" +
	"company_name, industry, revenue (USD), cogs_pct (decimal),\n" +
	"logistics_cost_pct (decimal), exception_cost_pct (decimal),\n" +
	"avg_inventory_value (optional), logistics_planner_fte (optional).\n" +
	"If revenue, logistics_cost_pct, or exception_cost_pct are missing or unclear,\n" +
	"ask a short, clear follow-up question instead of guessing.\n" +
	"When you have all required fields and the user has confirmed they are OK,\n" +
	"output this exact pattern:\n\n" +
	"ACTION:CALL_BACKEND\n" +
	"{\n" +
	"  \"company_name\": \"...\",\n" +
	"  \"industry\": \"...\",\n" +
	"  \"revenue\": ...,\n" +
	"  \"cogs_pct\": ...,\n" +
	"  \"logistics_cost_pct\": ...,\n" +
	"  \"exception_cost_pct\": ...,\n" +
	"  \"avg_inventory_value\": ...,\n" +
	"  \"logistics_planner_fte\": ...\n" +
	"}\n\n" +
	"Otherwise, just continue the conversation normally."

var actionPattern = regexp.MustCompile(`ACTION:CALL_BACKEND\s*(\{[\s\S]*?\})`)

// Response is the body of a /chat reply. Absent values encode as null.
type Response struct {
	Reply     string      `json:"reply"`
	Metrics   *roi.Result `json:"metrics"`
	PDFBase64 *string     `json:"pdf_base64"`
	Filename  *string     `json:"filename"`
}

// Agent drives the conversation with the model and runs the ROI model once
// the model hands over a complete payload.
type Agent struct {
	provider client.Provider
	engine   *roi.Engine
	log      *logger.Logger
}

func New(provider client.Provider, engine *roi.Engine) *Agent {
	return &Agent{
		provider: provider,
		engine:   engine,
		log:      logger.NewLogger("agent"),
	}
}

// HandleChat answers one turn of the conversation. Model failures are folded
// into the reply text; the returned error is reserved for report rendering.
func (a *Agent) HandleChat(ctx context.Context, messages []client.Message) (Response, error) {
	prompt := make([]client.Message, 0, len(messages)+1)
	prompt = append(prompt, client.Message{Role: client.RoleSystem, Content: SystemPrompt})
	prompt = append(prompt, messages...)

	text, err := a.provider.Chat(ctx, prompt)
	if err != nil {
		var keyErr *client.MissingKeyError
		if errors.As(err, &keyErr) {
			a.log.Warn("chat without credentials: ", err)
			return Response{Reply: keyErr.Error() + ". Please add it to a .env file or your environment."}, nil
		}

		a.log.Error("model call failed: ", err)
		// the user may have pasted a complete payload themselves
		joined := make([]string, len(messages))
		for i, m := range messages {
			joined[i] = m.Content
		}
		in, found, decodeErr := ExtractPayload(strings.Join(joined, "\n"))
		switch {
		case !found:
			return Response{Reply: err.Error()}, nil
		case decodeErr != nil:
			return a.unreadable(decodeErr), nil
		}
		return a.calculate(in)
	}

	in, found, decodeErr := ExtractPayload(text)
	switch {
	case !found:
		return Response{Reply: text}, nil
	case decodeErr != nil:
		return a.unreadable(decodeErr), nil
	}
	return a.calculate(in)
}

func (a *Agent) unreadable(err error) Response {
	a.log.Warn("unreadable ROI payload: ", err)
	return Response{Reply: "I could not read the ROI figures (" + err.Error() + "). Could you restate them?"}
}

func (a *Agent) calculate(in roi.Input) (Response, error) {
	res, err := a.engine.Run(in)
	if err != nil {
		var verr *roi.ValidationError
		if errors.As(err, &verr) {
			a.log.Warn("model produced an invalid payload: ", err)
			return Response{Reply: "I could not run the ROI model: " + strings.TrimPrefix(verr.Error(), "invalid roi input: ") + ". Could you check those values?"}, nil
		}
		return Response{}, err
	}

	rep, err := report.Generate(in, res)
	if err != nil {
		return Response{}, fmt.Errorf("generate report: %w", err)
	}
	a.log.Info("report ready for ", in.CompanyName)

	return Response{
		Reply:     Summary(res),
		Metrics:   &res,
		PDFBase64: &rep.PDFBase64,
		Filename:  &rep.Filename,
	}, nil
}

// Summary is the one-line reply sent with a finished report.
func Summary(res roi.Result) string {
	payback := " with payback not applicable"
	if res.PaybackMonths != nil {
		payback = fmt.Sprintf(" with payback in %.1f months", *res.PaybackMonths)
	}
	return fmt.Sprintf("Calculated ROI is %.2f%%%s. A PDF report is available.", res.ROIPercent, payback)
}

// ExtractPayload finds the first ACTION:CALL_BACKEND block in text and
// decodes its JSON object. found reports whether a block was present; err is
// set when the block could not be read as ROI input. Numbers may be quoted.
func ExtractPayload(text string) (in roi.Input, found bool, err error) {
	m := actionPattern.FindStringSubmatch(text)
	if m == nil {
		return roi.Input{}, false, nil
	}
	var p payload
	if err := json.Unmarshal([]byte(m[1]), &p); err != nil {
		return roi.Input{}, true, err
	}
	return roi.Input{
		CompanyName:         p.CompanyName,
		Industry:            p.Industry,
		Revenue:             p.Revenue.value(),
		CogsPct:             p.CogsPct.value(),
		LogisticsCostPct:    p.LogisticsCostPct.value(),
		ExceptionCostPct:    p.ExceptionCostPct.value(),
		AvgInventoryValue:   p.AvgInventoryValue.v,
		LogisticsPlannerFTE: p.LogisticsPlannerFTE.v,
	}, true, nil
}

type payload struct {
	CompanyName         string `json:"company_name"`
	Industry            string `json:"industry"`
	Revenue             number `json:"revenue"`
	CogsPct             number `json:"cogs_pct"`
	LogisticsCostPct    number `json:"logistics_cost_pct"`
	ExceptionCostPct    number `json:"exception_cost_pct"`
	AvgInventoryValue   number `json:"avg_inventory_value"`
	LogisticsPlannerFTE number `json:"logistics_planner_fte"`
}

// number accepts a JSON number, a numeric string or null.
type number struct {
	v *float64
}

func (n number) value() float64 {
	if n.v == nil {
		return 0
	}
	return *n.v
}

func (n *number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		n.v = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			n.v = nil
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", s)
		}
		n.v = &f
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	n.v = &f
	return nil
}

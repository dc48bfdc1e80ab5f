package yahoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/driftlab/internal/core"
)

// earningsQuery is the visualization API screener body for earnings
// announcement dates (event type EAD) of one ticker
type earningsQuery struct {
	Size          int      `json:"size"`
	Offset        int      `json:"offset"`
	SortField     string   `json:"sortField"`
	SortType      string   `json:"sortType"`
	EntityIDType  string   `json:"entityIdType"`
	IncludeFields []string `json:"includeFields"`
	Query         operand  `json:"query"`
}

type operand struct {
	Operator string `json:"operator"`
	Operands []any  `json:"operands"`
}

func newEarningsQuery(symbol string, limit int) earningsQuery {
	return earningsQuery{
		Size:         limit,
		SortField:    "startdatetime",
		SortType:     "DESC",
		EntityIDType: "earnings",
		IncludeFields: []string{
			"ticker", "startdatetime", "timeZoneShortName", "epsestimate", "epsactual",
		},
		Query: operand{
			Operator: "and",
			Operands: []any{
				operand{Operator: "eq", Operands: []any{"ticker", symbol}},
				operand{Operator: "eq", Operands: []any{"eventtype", "EAD"}},
			},
		},
	}
}

// FetchEarningsDates returns up to limit announcement dates, most recent
// first, as exchange-local calendar dates at midnight UTC
func (c *Client) FetchEarningsDates(ctx context.Context, symbol string, limit int) ([]time.Time, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 240
	}

	body, err := json.Marshal(newEarningsQuery(toYahooSymbol(symbol), limit))
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	url := c.config.EarningsURL + "?lang=en-US&region=US"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, requestError("fetching earnings", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result visualizationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Finance.Error != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("yahoo error: %s", result.Finance.Error.Description))
	}
	if len(result.Finance.Result) == 0 || len(result.Finance.Result[0].Documents) == 0 {
		return nil, nil
	}

	return c.parseEarnings(result.Finance.Result[0].Documents[0])
}

func (c *Client) parseEarnings(doc document) ([]time.Time, error) {
	col := -1
	for i, column := range doc.Columns {
		if column.ID == "startdatetime" || column.Label == "Event Start Date" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("earnings response has no start date column")
	}

	dates := make([]time.Time, 0, len(doc.Rows))
	for _, row := range doc.Rows {
		if col >= len(row) {
			continue
		}
		raw, ok := row[col].(string)
		if !ok {
			continue
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			continue
		}
		dates = append(dates, c.tradingDay(ts))
	}
	return dates, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %s", s)
}

// Yahoo visualization API response types
type visualizationResponse struct {
	Finance struct {
		Result []struct {
			Documents []document `json:"documents"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"finance"`
}

type document struct {
	Columns []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"columns"`
	Rows [][]any `json:"rows"`
}

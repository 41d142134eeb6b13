package aggregator

const billingWindowDays = 3

// Totals is the summed consumption and cost over a period.
type Totals struct {
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
	Days        int     `json:"days"`
}

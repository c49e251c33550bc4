package llm

// modelRates are USD per 1000 tokens, input and output priced separately.
type modelRates struct {
	Input  float64
	Output float64
}

// pricingTable holds per-model token rates. Models missing from the table
// are priced at zero so unknown deployments never fabricate a cost.
var pricingTable = map[string]modelRates{
	ModelGPT4:             {Input: 0.03, Output: 0.06},
	ModelGPT4Turbo:        {Input: 0.01, Output: 0.03},
	ModelGPT35Turbo:       {Input: 0.001, Output: 0.002},
	ModelDeepSeekChat:     {Input: 0.00014, Output: 0.00028},
	ModelDeepSeekReasoner: {Input: 0.00055, Output: 0.0022},
}

// EstimateCost returns the USD cost of a completion given its token usage.
// Unknown models cost 0.0.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	rates, ok := pricingTable[model]
	if !ok {
		return 0.0
	}
	return float64(promptTokens)/1000.0*rates.Input +
		float64(completionTokens)/1000.0*rates.Output
}

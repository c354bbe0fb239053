package flow

// SampleTitle names the illustrative dataset.
const SampleTitle = "Warner Bros. Discovery (illustrative, $M)"

// Sample returns the illustrative flow graph used whenever parsing yields
// nothing usable. Each call returns a fresh copy.
func Sample() Graph {
	nodes := []Node{
		{"Studios", CategoryRevenue},
		{"Networks", CategoryRevenue},
		{"Streaming", CategoryRevenue},
		{AggregatorLabel, CategoryRevenue},
		{"Cost of Revenue", CategoryCost},
		{"Gross Profit", CategoryProfit},
		{"Operating Expenses", CategoryCost},
		{"SG&A", CategoryCost},
		{"Amortization", CategoryCost},
		{"Other", CategoryCost},
		{"Operating Profit", CategoryProfit},
		{"Net Loss", CategoryLoss},
		{"Other Expenses", CategoryCost},
	}
	edges := []Edge{
		{0, 3, 3300},
		{1, 3, 3900},
		{2, 3, 2600},
		{3, 4, 4600},
		{3, 5, 4500},
		{5, 6, 3900},
		{5, 7, 2480},
		{5, 8, 1400},
		{5, 9, 180},
		{5, 10, 600},
		{10, 11, 100},
		{10, 12, 500},
	}
	return Graph{Title: SampleTitle, Nodes: nodes, Edges: edges, Fallback: true}
}

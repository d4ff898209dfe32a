package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// positionsFromInput извлекает список позиций портфеля из входных данных.
// Ожидаемый формат: "positions": [{"symbol": ..., "value": ...}, ...].
func positionsFromInput(input map[string]any) ([]position, error) {
	raw, ok := input["positions"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("input must contain a non-empty positions list")
	}
	positions := make([]position, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("each position must be an object")
		}
		symbol, _ := m["symbol"].(string)
		value, _ := m["value"].(float64)
		if symbol == "" || value <= 0 {
			return nil, fmt.Errorf("each position needs a symbol and a positive value")
		}
		positions = append(positions, position{Symbol: symbol, Value: value})
	}
	return positions, nil
}

type position struct {
	Symbol string
	Value  float64
}

type portfolioAgent struct{}

func (a *portfolioAgent) ID() string   { return "portfolio_agent" }
func (a *portfolioAgent) Name() string { return "Portfolio Analyzer" }
func (a *portfolioAgent) Description() string {
	return "Analyze and optimize investment portfolios with risk metrics and diversification analysis."
}

// Invoke считает веса позиций и простую метрику концентрации портфеля.
func (a *portfolioAgent) Invoke(_ context.Context, input map[string]any) (*Result, error) {
	positions, err := positionsFromInput(input)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, p := range positions {
		total += p.Value
	}

	weights := make(map[string]float64, len(positions))
	var concentration float64
	for _, p := range positions {
		w := p.Value / total
		weights[p.Symbol] = w
		concentration += w * w
	}

	return &Result{
		AgentID: a.ID(),
		Data: map[string]any{
			"total_value":   total,
			"weights":       weights,
			"concentration": concentration,
			"diversified":   concentration < 0.3,
		},
	}, nil
}

type stockFinder struct{}

func (a *stockFinder) ID() string   { return "stockfinder" }
func (a *stockFinder) Name() string { return "Stock Finder" }
func (a *stockFinder) Description() string {
	return "Discover and screen stocks based on financial metrics and market data."
}

// Invoke фильтрует кандидатов по максимальному P/E из входных критериев.
func (a *stockFinder) Invoke(_ context.Context, input map[string]any) (*Result, error) {
	maxPE, ok := input["max_pe"].(float64)
	if !ok || maxPE <= 0 {
		return nil, fmt.Errorf("input must contain a positive max_pe")
	}

	candidates, _ := input["candidates"].([]any)
	var matches []map[string]any
	for _, item := range candidates {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pe, _ := m["pe"].(float64)
		if pe > 0 && pe <= maxPE {
			matches = append(matches, m)
		}
	}

	return &Result{
		AgentID: a.ID(),
		Data: map[string]any{
			"criteria": map[string]any{"max_pe": maxPE},
			"matches":  matches,
			"count":    len(matches),
		},
	}, nil
}

type newsAgent struct{}

func (a *newsAgent) ID() string   { return "newsagent" }
func (a *newsAgent) Name() string { return "Financial News Analyzer" }
func (a *newsAgent) Description() string {
	return "Analyze financial news and extract actionable insights for your investments."
}

var bullishWords = []string{"beat", "growth", "upgrade", "record", "surge"}
var bearishWords = []string{"miss", "downgrade", "loss", "lawsuit", "decline"}

// Invoke оценивает тональность заголовков по словарю маркеров.
func (a *newsAgent) Invoke(_ context.Context, input map[string]any) (*Result, error) {
	raw, ok := input["headlines"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("input must contain a non-empty headlines list")
	}

	var score int
	for _, item := range raw {
		headline, _ := item.(string)
		lower := strings.ToLower(headline)
		for _, w := range bullishWords {
			if strings.Contains(lower, w) {
				score++
			}
		}
		for _, w := range bearishWords {
			if strings.Contains(lower, w) {
				score--
			}
		}
	}

	sentiment := "neutral"
	if score > 0 {
		sentiment = "bullish"
	} else if score < 0 {
		sentiment = "bearish"
	}

	return &Result{
		AgentID: a.ID(),
		Data: map[string]any{
			"headlines_analyzed": len(raw),
			"score":              score,
			"sentiment":          sentiment,
		},
	}, nil
}

type optionsStrategyAgent struct{}

func (a *optionsStrategyAgent) ID() string   { return "options_strategy_agent" }
func (a *optionsStrategyAgent) Name() string { return "Options Strategy Advisor" }
func (a *optionsStrategyAgent) Description() string {
	return "Get options trading strategies tailored to your market outlook."
}

// Invoke подбирает стратегию по прогнозу рынка (bullish/bearish/neutral).
func (a *optionsStrategyAgent) Invoke(_ context.Context, input map[string]any) (*Result, error) {
	outlook, _ := input["outlook"].(string)

	var strategy, rationale string
	switch strings.ToLower(outlook) {
	case "bullish":
		strategy = "bull call spread"
		rationale = "limited-risk upside exposure for a moderately bullish view"
	case "bearish":
		strategy = "protective put"
		rationale = "downside insurance while holding the underlying"
	case "neutral":
		strategy = "iron condor"
		rationale = "collect premium while the underlying stays range-bound"
	default:
		return nil, fmt.Errorf("input must contain outlook: bullish, bearish or neutral")
	}

	return &Result{
		AgentID: a.ID(),
		Data: map[string]any{
			"outlook":   strings.ToLower(outlook),
			"strategy":  strategy,
			"rationale": rationale,
		},
	}, nil
}

type etfScreenerAgent struct{}

func (a *etfScreenerAgent) ID() string   { return "etf_screener_agent" }
func (a *etfScreenerAgent) Name() string { return "ETF Screener" }
func (a *etfScreenerAgent) Description() string {
	return "Screen and analyze ETFs based on various criteria."
}

// Invoke отбирает фонды с коэффициентом расходов не выше порога.
func (a *etfScreenerAgent) Invoke(_ context.Context, input map[string]any) (*Result, error) {
	maxExpense, ok := input["max_expense_ratio"].(float64)
	if !ok || maxExpense <= 0 {
		return nil, fmt.Errorf("input must contain a positive max_expense_ratio")
	}

	funds, _ := input["funds"].([]any)
	var matches []map[string]any
	for _, item := range funds {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ratio, _ := m["expense_ratio"].(float64)
		if ratio > 0 && ratio <= maxExpense {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		ri, _ := matches[i]["expense_ratio"].(float64)
		rj, _ := matches[j]["expense_ratio"].(float64)
		return ri < rj
	})

	return &Result{
		AgentID: a.ID(),
		Data: map[string]any{
			"max_expense_ratio": maxExpense,
			"matches":           matches,
			"count":             len(matches),
		},
	}, nil
}

type socialSentimentAgent struct{}

func (a *socialSentimentAgent) ID() string   { return "social_sentiment_agent" }
func (a *socialSentimentAgent) Name() string { return "Social Sentiment Analyzer" }
func (a *socialSentimentAgent) Description() string {
	return "Track social media sentiment for stocks and identify market trends."
}

// Invoke агрегирует упоминания по тикеру в условный индекс настроения.
func (a *socialSentimentAgent) Invoke(_ context.Context, input map[string]any) (*Result, error) {
	symbol, _ := input["symbol"].(string)
	if symbol == "" {
		return nil, fmt.Errorf("input must contain a symbol")
	}
	positive, _ := input["positive_mentions"].(float64)
	negative, _ := input["negative_mentions"].(float64)

	totalMentions := positive + negative
	index := 0.0
	if totalMentions > 0 {
		index = (positive - negative) / totalMentions
	}

	return &Result{
		AgentID: a.ID(),
		Data: map[string]any{
			"symbol":          strings.ToUpper(symbol),
			"mentions":        totalMentions,
			"sentiment_index": index,
		},
	}, nil
}

type macroSectorAgent struct{}

func (a *macroSectorAgent) ID() string   { return "macro_sector_agent" }
func (a *macroSectorAgent) Name() string { return "Macro & Sector Analyzer" }
func (a *macroSectorAgent) Description() string {
	return "Analyze macroeconomic trends and sector performance."
}

// Invoke определяет фазу цикла по росту ВВП и инфляции и предпочтительные сектора.
func (a *macroSectorAgent) Invoke(_ context.Context, input map[string]any) (*Result, error) {
	gdpGrowth, okGDP := input["gdp_growth"].(float64)
	inflation, okInf := input["inflation"].(float64)
	if !okGDP || !okInf {
		return nil, fmt.Errorf("input must contain gdp_growth and inflation")
	}

	var phase string
	var sectors []string
	switch {
	case gdpGrowth >= 2 && inflation < 3:
		phase = "expansion"
		sectors = []string{"technology", "consumer_discretionary"}
	case gdpGrowth >= 0 && inflation >= 3:
		phase = "overheating"
		sectors = []string{"energy", "materials"}
	default:
		phase = "contraction"
		sectors = []string{"utilities", "consumer_staples"}
	}

	return &Result{
		AgentID: a.ID(),
		Data: map[string]any{
			"phase":             phase,
			"preferred_sectors": sectors,
		},
	}, nil
}

type tradeAgent struct{}

func (a *tradeAgent) ID() string   { return "tradeagent" }
func (a *tradeAgent) Name() string { return "Trading Agent" }
func (a *tradeAgent) Description() string {
	return "Execute trades with smart order routing and timing strategies."
}

// Invoke строит план исполнения заявки: крупные заявки дробятся на части.
func (a *tradeAgent) Invoke(_ context.Context, input map[string]any) (*Result, error) {
	symbol, _ := input["symbol"].(string)
	quantity, _ := input["quantity"].(float64)
	if symbol == "" || quantity <= 0 {
		return nil, fmt.Errorf("input must contain a symbol and a positive quantity")
	}

	const sliceSize = 100
	slices := int(quantity) / sliceSize
	if int(quantity)%sliceSize != 0 {
		slices++
	}

	return &Result{
		AgentID: a.ID(),
		Data: map[string]any{
			"symbol":   strings.ToUpper(symbol),
			"quantity": quantity,
			"slices":   slices,
			"routing":  "twap",
		},
	}, nil
}

type portfolioAdvisorAgent struct{}

func (a *portfolioAdvisorAgent) ID() string   { return "portfolioadvisoragent" }
func (a *portfolioAdvisorAgent) Name() string { return "Portfolio Advisor" }
func (a *portfolioAdvisorAgent) Description() string {
	return "Get personalized portfolio advice and recommendations."
}

// Invoke предлагает распределение активов по профилю риска.
func (a *portfolioAdvisorAgent) Invoke(_ context.Context, input map[string]any) (*Result, error) {
	profile, _ := input["risk_profile"].(string)

	var allocation map[string]float64
	switch strings.ToLower(profile) {
	case "conservative":
		allocation = map[string]float64{"bonds": 0.7, "stocks": 0.2, "cash": 0.1}
	case "balanced":
		allocation = map[string]float64{"bonds": 0.4, "stocks": 0.55, "cash": 0.05}
	case "aggressive":
		allocation = map[string]float64{"bonds": 0.1, "stocks": 0.85, "cash": 0.05}
	default:
		return nil, fmt.Errorf("input must contain risk_profile: conservative, balanced or aggressive")
	}

	return &Result{
		AgentID: a.ID(),
		Data: map[string]any{
			"risk_profile": strings.ToLower(profile),
			"allocation":   allocation,
		},
	}, nil
}

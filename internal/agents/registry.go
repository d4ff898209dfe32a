package agents

import (
	"fmt"
	"sync"
)

// Registry хранит закрытый набор конструкторов бэкендов и лениво созданные
// экземпляры. Инициализация каждого бэкенда защищена sync.Once: конкурентное
// первое обращение создаёт ровно один экземпляр.
type Registry struct {
	entries map[string]*entry
}

type entry struct {
	construct Constructor
	once      sync.Once
	instance  Backend
}

// NewRegistry собирает реестр со всеми бэкендами продукта.
func NewRegistry() *Registry {
	constructors := map[string]Constructor{
		"portfolio_agent":        func() Backend { return &portfolioAgent{} },
		"stockfinder":            func() Backend { return &stockFinder{} },
		"newsagent":              func() Backend { return &newsAgent{} },
		"options_strategy_agent": func() Backend { return &optionsStrategyAgent{} },
		"etf_screener_agent":     func() Backend { return &etfScreenerAgent{} },
		"social_sentiment_agent": func() Backend { return &socialSentimentAgent{} },
		"macro_sector_agent":     func() Backend { return &macroSectorAgent{} },
		"tradeagent":             func() Backend { return &tradeAgent{} },
		"portfolioadvisoragent":  func() Backend { return &portfolioAdvisorAgent{} },
	}

	entries := make(map[string]*entry, len(constructors))
	for id, c := range constructors {
		entries[id] = &entry{construct: c}
	}
	return &Registry{entries: entries}
}

// Get возвращает экземпляр бэкенда по идентификатору агента,
// создавая его при первом обращении.
func (r *Registry) Get(agentID string) (Backend, error) {
	const op = "agents.Get"
	e, ok := r.entries[agentID]
	if !ok {
		return nil, fmt.Errorf("%s: unknown agent id %q", op, agentID)
	}
	e.once.Do(func() {
		e.instance = e.construct()
	})
	return e.instance, nil
}

// Describe возвращает имя и описание агента по его идентификатору.
func (r *Registry) Describe(agentID string) (name, description string, ok bool) {
	b, err := r.Get(agentID)
	if err != nil {
		return "", "", false
	}
	return b.Name(), b.Description(), true
}

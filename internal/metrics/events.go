package metrics

import (
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
)

// Attach counts briefing events from eb into the package metrics.
func Attach(eb *bus.EventBus) {
	counters := map[string]*Counter{
		bus.EventMessageRejected:   MessagesRejected,
		bus.EventRateLimited:       MessagesRejected,
		bus.EventProviderError:     LLMFailures,
		bus.EventPersistenceError:  PersistenceErrors,
		bus.EventCaseDetected:      CasesDetected,
		bus.EventBriefingComplete:  BriefingsComplete,
		bus.EventBriefingConfirmed: BriefingsConfirmed,
		bus.EventExportCreated:     ExportsTotal,
	}
	eb.On(bus.AllEvents, func(e bus.Event) {
		if c, ok := counters[e.Type]; ok {
			c.Inc()
		}
		if e.Type == bus.EventMessageAdded && e.Payload["role"] == "user" {
			MessagesTotal.Inc()
		}
		if e.Type == bus.EventProviderError {
			if fallback, _ := e.Payload["fallback"].(bool); fallback {
				FallbackReplies.Inc()
			}
			if timeout, _ := e.Payload["timeout"].(bool); timeout {
				LLMTimeouts.Inc()
			}
		}
	})
}

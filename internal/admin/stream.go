package admin

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/scoutgrid/orchestrator/internal/events"
)

// streamedEventTypes is every event type the websocket feed mirrors.
var streamedEventTypes = []events.EventType{
	events.JobEnqueued,
	events.JobStarted,
	events.JobCompleted,
	events.JobFailed,
	events.QueueCleared,
	events.LockAcquired,
	events.LockReleased,
	events.LockForced,
	events.SchedulerTick,
	events.MonitorTick,
}

// handleStream upgrades to a websocket and mirrors every event the bus
// emits (job lifecycle, lock lifecycle, scheduler/monitor ticks, and the
// admin surface's own state-changing writes) as a JSON frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx := r.Context()

	if s.cfg.Bus == nil {
		<-ctx.Done()
		conn.Close(websocket.StatusNormalClosure, "no event bus configured")
		return
	}

	ch := make(chan *events.Event, 64)
	var subs []events.Subscription
	for _, eventType := range streamedEventTypes {
		sub := s.cfg.Bus.Subscribe(eventType, func(ev *events.Event) {
			select {
			case ch <- ev:
			default:
				s.log.Warn().Str("event_type", string(ev.Type)).Msg("stream client too slow, dropping event")
			}
		})
		subs = append(subs, sub)
	}
	defer func() {
		for _, sub := range subs {
			s.cfg.Bus.Unsubscribe(sub)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		case ev := <-ch:
			if err := s.writeEvent(ctx, conn, ev); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed, dropping client")
				return
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *websocket.Conn, ev *events.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, ev)
}

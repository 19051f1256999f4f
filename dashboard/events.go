package dashboard

import (
	"discord-moderator/feed"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const keepAliveInterval = 15 * time.Second

// handleEvents streams the live feed as server-sent events. The stream opens
// with the current status so a new listener does not wait for the next tick.
func (srv *Server) handleEvents(c echo.Context) error {
	evts, cancel := srv.deps.Feed.Subscribe(feed.DefaultBufferSize)
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, feed.Event{Kind: feed.EvtKindStatus, Time: time.Now(), Payload: srv.deps.Bot.Status()}); err != nil {
		return nil
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-srv.done:
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case evt, ok := <-evts:
			if !ok {
				return nil
			}
			if err := writeEvent(res, evt); err != nil {
				log.Printf("[Dashboard] Event stream closed: %v", err)
				return nil
			}
		}
	}
}

func writeEvent(res *echo.Response, evt feed.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", evt.Kind, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}

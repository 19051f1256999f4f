package dashboard

import (
	"discord-moderator/bot"
	"discord-moderator/config"
	"discord-moderator/model"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	defaultLogLimit  = 100
	maxLogLimit      = 1000
	defaultStatsSpan = 24 * time.Hour
)

func (srv *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.deps.Bot.Status())
}

func (srv *Server) handleGetRules(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.deps.Rules.GetRules())
}

// storeError maps config store failures onto HTTP errors.
func storeError(err error) error {
	switch {
	case errors.Is(err, config.ErrRuleNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, config.ErrInvalidPatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

func (srv *Server) handleUpdateRule(c echo.Context) error {
	var patch model.RulePatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rule, err := srv.deps.Rules.UpdateRule(c.Param("id"), patch)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, rule)
}

func (srv *Server) handleGetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.deps.Rules.GetSettings())
}

func (srv *Server) handleUpdateSettings(c echo.Context) error {
	var patch model.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	settings, err := srv.deps.Rules.UpdateSettings(patch)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (srv *Server) handleLogs(c echo.Context) error {
	q := model.AuditQuery{
		Type:    model.AuditType(c.QueryParam("type")),
		GuildID: c.QueryParam("guildId"),
		UserID:  c.QueryParam("userId"),
		Limit:   defaultLogLimit,
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		q.Limit = min(n, maxLogLimit)
	}
	if raw := c.QueryParam("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be an RFC 3339 timestamp")
		}
		q.Since = since
	}
	entries, err := srv.deps.Audit.Query(q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (srv *Server) handleStats(c echo.Context) error {
	span := defaultStatsSpan
	if raw := c.QueryParam("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "hours must be a positive integer")
		}
		span = time.Duration(h) * time.Hour
	}
	stats, err := srv.deps.Audit.Stats(time.Now().Add(-span))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (srv *Server) handleBans(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.deps.Bans.Pending())
}

func (srv *Server) handleWarnings(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.deps.Warnings.Snapshot())
}

func (srv *Server) handleResetWarnings(c echo.Context) error {
	cleared := srv.deps.Warnings.Reset(c.Param("userId"))
	return c.JSON(http.StatusOK, map[string]bool{"cleared": cleared})
}

func (srv *Server) handleBotStart(c echo.Context) error {
	if err := srv.deps.Bot.Start(); err != nil {
		if errors.Is(err, bot.ErrAlreadyRunning) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, srv.deps.Bot.Status())
}

func (srv *Server) handleBotStop(c echo.Context) error {
	if err := srv.deps.Bot.Stop(); err != nil {
		if errors.Is(err, bot.ErrNotRunning) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, srv.deps.Bot.Status())
}

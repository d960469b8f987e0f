package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/tmdnlcl/relay-worker/api/types"
	"github.com/tmdnlcl/relay-worker/internal/jobs"
	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
	"github.com/tmdnlcl/relay-worker/internal/store"
)

type AccountCounter interface {
	CountAccounts(ctx context.Context) (int64, error)
}

type LivenessReader interface {
	LastUpdate(ctx context.Context) (*time.Time, error)
}

// SweepReader reports when the job server last finished a sweep.
type SweepReader interface {
	LastSweep() time.Time
}

// register enrolls an account, or refreshes the tokens of a known one.
//
// POST /accounts
func register(archive *jobs.Archive) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := types.RegisterRequest{}
		if err := c.Bind(&req); err != nil {
			return err
		}
		account, err := archive.Register(c.Request().Context(), req.ID, req.Token, req.TokenSecret)
		if err != nil {
			return c.JSON(http.StatusBadRequest, types.APIError{Error: err.Error()})
		}
		return c.JSON(http.StatusCreated, account)
	}
}

// PUT /accounts/:id/mode
func setMode(archive *jobs.Archive) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		req := types.ModeRequest{}
		if err := c.Bind(&req); err != nil {
			return err
		}
		mode, err := types.ParseMode(req.Mode)
		if err != nil {
			return c.JSON(http.StatusBadRequest, types.APIError{Error: err.Error()})
		}
		account, err := archive.SetMode(c.Request().Context(), id, mode)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, account)
	}
}

// GET /accounts/:id/tweets
func listTweets(archive *jobs.Archive) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		tweets, err := archive.List(c.Request().Context(), id)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, tweets)
	}
}

// postTweet publishes an archived tweet, optionally with edited content.
//
// POST /accounts/:id/tweets/:tweet_id/post
func postTweet(archive *jobs.Archive) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		tweetID, err := paramID(c, "tweet_id")
		if err != nil {
			return err
		}
		req := types.PostRequest{}
		if c.Request().ContentLength != 0 {
			if err := c.Bind(&req); err != nil {
				return err
			}
		}
		posted, err := archive.Post(c.Request().Context(), id, tweetID, req.Content)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, types.PostResponse{StatusID: posted})
	}
}

// DELETE /accounts/:id/tweets/:tweet_id
func deleteTweet(archive *jobs.Archive) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		tweetID, err := paramID(c, "tweet_id")
		if err != nil {
			return err
		}
		if err := archive.Delete(c.Request().Context(), id, tweetID); err != nil {
			return errorResponse(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// GET /stats
func statsHandler(accounts AccountCounter, liveness LivenessReader, sweeps SweepReader, collector *stats.StatsCollector) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		count, err := accounts.CountAccounts(ctx)
		if err != nil {
			return errorResponse(c, err)
		}
		last, err := liveness.LastUpdate(ctx)
		if err != nil {
			return errorResponse(c, err)
		}

		resp := types.StatsResponse{
			Stats:    types.Stats{LastUpdate: last, Accounts: count},
			Counters: map[string]uint{},
		}
		if sweeps != nil {
			if at := sweeps.LastSweep(); !at.IsZero() {
				resp.LastSweep = &at
			}
		}
		if collector != nil {
			for typ, n := range collector.Totals() {
				resp.Counters[string(typ)] = n
			}
			workers, err := collector.Json()
			if err != nil {
				return errorResponse(c, err)
			}
			resp.Workers = workers
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var perr *jobs.TweetProcessingError
	switch {
	case errors.Is(err, store.ErrAccountNotFound), errors.Is(err, store.ErrTweetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, jobs.ErrInvalidMode), errors.Is(err, jobs.ErrEmptyTweet):
		status = http.StatusBadRequest
	case errors.As(err, &perr):
		status = http.StatusBadGateway
	default:
		logrus.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}
	return c.JSON(status, types.APIError{Error: err.Error()})
}

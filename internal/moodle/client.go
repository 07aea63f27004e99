package moodle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Failure kinds for a presence fetch. All are non-fatal: the poll loop logs
// the kind and skips the cycle.
var (
	ErrUnreachable = errors.New("moodle unreachable")
	ErrTimeout     = errors.New("moodle request timed out")
	ErrBadStatus   = errors.New("moodle returned non-success status")
	ErrMalformed   = errors.New("moodle response not parseable")
	ErrException   = errors.New("moodle webservice exception")
)

// OnlineUser is one record from core_user_get_users. It lives for a single
// poll cycle.
type OnlineUser struct {
	ID         int64  `json:"id"`
	FullName   string `json:"fullname"`
	Username   string `json:"username"`
	LastAccess int64  `json:"lastaccess"`
}

// Client fetches users active within the trailing presence window.
type Client interface {
	OnlineUsers(ctx context.Context) ([]OnlineUser, error)
}

type client struct {
	endpoint string
	token    string
	window   time.Duration
	http     *http.Client
	logger   zerolog.Logger
	now      func() time.Time
}

// NewClient builds a client for the Moodle REST webservice endpoint. The
// token is the site's pre-shared webservice token.
func NewClient(baseURL, token string, window, timeout time.Duration, logger zerolog.Logger) Client {
	return &client{
		endpoint: strings.TrimRight(baseURL, "/") + "/webservice/rest/server.php",
		token:    token,
		window:   window,
		http:     &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "moodle_client").Logger(),
		now:      time.Now,
	}
}

// OnlineUsers asks the webservice for users whose lastaccess falls inside
// the window and re-filters the result against the same cutoff, in case the
// server ignores or loosely interprets the criterion.
func (c *client) OnlineUsers(ctx context.Context) ([]OnlineUser, error) {
	cutoff := c.now().Add(-c.window).Unix()

	query := url.Values{}
	query.Set("wstoken", c.token)
	query.Set("wsfunction", "core_user_get_users")
	query.Set("moodlewsrestformat", "json")
	query.Set("criteria[0][key]", "lastaccess")
	query.Set("criteria[0][value]", strconv.FormatInt(cutoff, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var payload struct {
		Users     []OnlineUser `json:"users"`
		Exception string       `json:"exception"`
		Message   string       `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// Moodle reports webservice failures as a 200 with an exception body.
	if payload.Exception != "" {
		return nil, fmt.Errorf("%w: %s", ErrException, payload.Message)
	}

	online := make([]OnlineUser, 0, len(payload.Users))
	for _, u := range payload.Users {
		if u.LastAccess >= cutoff {
			online = append(online, u)
		}
	}

	if dropped := len(payload.Users) - len(online); dropped > 0 {
		c.logger.Debug().Int("dropped", dropped).Msg("server returned users outside the presence window")
	}

	return online, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

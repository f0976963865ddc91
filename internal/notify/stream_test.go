package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	id "veritas/pkg/domain"
	"veritas/pkg/requestcontext"
)

type frame struct {
	event   string
	data    string
	comment string
}

type AlertStreamSuite struct {
	suite.Suite
	hub    *Hub
	prefs  *stubPreferences
	server *httptest.Server
	owner  id.UserID
}

func TestAlertStreamSuite(t *testing.T) {
	suite.Run(t, new(AlertStreamSuite))
}

func (s *AlertStreamSuite) SetupTest() {
	s.hub = NewHub()
	s.prefs = newStubPreferences()
	s.owner = id.NewUserID()

	stream := NewAlertStream(s.hub, s.prefs, nil, WithHeartbeat(10*time.Millisecond))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get("X-Test-User"); raw != "" {
				userID, err := id.ParseUserID(raw)
				s.Require().NoError(err)
				r = r.WithContext(requestcontext.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	})
	stream.Register(r)
	s.server = httptest.NewServer(r)
}

func (s *AlertStreamSuite) TearDownTest() {
	s.hub.Close()
	s.server.Close()
}

// open connects as owner and returns a channel of parsed frames. The
// returned stop function closes the connection and waits for the reader.
func (s *AlertStreamSuite) open(owner id.UserID) (<-chan frame, func()) {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/notifications/stream", nil)
	s.Require().NoError(err)
	req.Header.Set("X-Test-User", owner.String())
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan frame, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(frames)
		sc := bufio.NewScanner(resp.Body)
		var f frame
		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				select {
				case frames <- f:
				default:
				}
				f = frame{}
			case strings.HasPrefix(line, ": "):
				f.comment = strings.TrimPrefix(line, ": ")
			case strings.HasPrefix(line, "event: "):
				f.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				f.data = strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	s.Require().Eventually(func() bool { return s.hub.Subscribers(owner) == 1 }, time.Second, 5*time.Millisecond)
	return frames, func() {
		resp.Body.Close()
		<-done
	}
}

func nextEvent(frames <-chan frame, timeout time.Duration) (frame, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return frame{}, false
			}
			if f.event != "" {
				return f, true
			}
		case <-deadline:
			return frame{}, false
		}
	}
}

func (s *AlertStreamSuite) TestEmitsAlertsWhenWanted() {
	s.prefs.set(s.owner, true, true)
	frames, stop := s.open(s.owner)
	defer stop()

	first, ok := nextEvent(frames, time.Second)
	s.Require().True(ok)
	s.Equal("connected", first.event)

	ctx := context.Background()
	s.Require().NoError(s.hub.Publish(ctx, verifiedRecord(s.owner, "honest")))
	s.Require().NoError(s.hub.Publish(ctx, alertRecord(s.owner, "drsmith", "<b>Unlicensed</b>   practitioner")))
	s.Require().NoError(s.hub.Publish(ctx, alertRecord(s.owner, "quiet", "")))

	got, ok := nextEvent(frames, time.Second)
	s.Require().True(ok)
	s.Equal("alert", got.event)
	var alert Alert
	s.Require().NoError(json.Unmarshal([]byte(got.data), &alert))
	s.Equal("Alert: @drsmith", alert.Title)
	s.Equal("Unlicensed practitioner", alert.Message)
	s.True(alert.Destructive)

	got, ok = nextEvent(frames, time.Second)
	s.Require().True(ok)
	s.Require().NoError(json.Unmarshal([]byte(got.data), &alert))
	s.Equal("Alert: @quiet", alert.Title)
	s.Equal("Suspicious content detected", alert.Message)
}

func (s *AlertStreamSuite) TestSuppressesAlertsWhenNotWanted() {
	cases := map[string]func(){
		"protection off":    func() { s.prefs.set(s.owner, false, true) },
		"notifications off": func() { s.prefs.set(s.owner, true, false) },
		"no preferences":    func() {},
	}
	for name, setup := range cases {
		s.Run(name, func() {
			s.prefs = newStubPreferences()
			setup()
			stream := NewAlertStream(s.hub, s.prefs, nil, WithHeartbeat(10*time.Millisecond))
			rec := httptest.NewRecorder()
			ctx, cancel := context.WithTimeout(requestcontext.WithUserID(context.Background(), s.owner), 150*time.Millisecond)
			defer cancel()
			req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil).WithContext(ctx)

			done := make(chan struct{})
			go func() {
				defer close(done)
				stream.HandleStream(rec, req)
			}()
			s.Require().Eventually(func() bool { return s.hub.Subscribers(s.owner) == 1 }, time.Second, 5*time.Millisecond)
			s.Require().NoError(s.hub.Publish(context.Background(), alertRecord(s.owner, "drsmith", "x")))
			<-done

			body := rec.Body.String()
			s.Contains(body, "event: connected")
			s.Contains(body, ": keepalive")
			s.NotContains(body, "event: alert")
		})
	}
}

func (s *AlertStreamSuite) TestOtherUsersAlertsNotDelivered() {
	other := id.NewUserID()
	s.prefs.set(s.owner, true, true)
	s.prefs.set(other, true, true)
	frames, stop := s.open(s.owner)
	defer stop()

	first, ok := nextEvent(frames, time.Second)
	s.Require().True(ok)
	s.Equal("connected", first.event)

	s.Require().NoError(s.hub.Publish(context.Background(), alertRecord(other, "elsewhere", "x")))
	_, ok = nextEvent(frames, 100*time.Millisecond)
	s.False(ok)
}

func (s *AlertStreamSuite) TestStreamEndsWhenHubCloses() {
	frames, stop := s.open(s.owner)
	defer stop()

	s.hub.Close()
	s.Eventually(func() bool {
		for {
			select {
			case _, ok := <-frames:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 10*time.Millisecond)
}

func (s *AlertStreamSuite) TestMissingUserIsRejected() {
	resp, err := s.server.Client().Get(s.server.URL + "/notifications/stream")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
}

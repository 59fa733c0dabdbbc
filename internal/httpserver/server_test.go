package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robalobadob/riddler/internal/errs"
	"github.com/robalobadob/riddler/internal/game"
	"github.com/robalobadob/riddler/internal/riddles"
	"github.com/robalobadob/riddler/internal/store"
	"github.com/robalobadob/riddler/internal/vision"
)

type stubOracle struct {
	reply string
	err   error
}

func (o stubOracle) Ask(context.Context, string, riddles.Question, []game.HistoryEntry) (string, error) {
	return o.reply, o.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	ts    *httptest.Server
	clock *clock
}

func newFixture(t *testing.T, oracle game.Oracle, labeler Labeler) *fixture {
	t.Helper()
	bank, err := riddles.New([]riddles.Question{
		{Title: "Stairs", Body: "A man takes the lift down but the stairs up.", HiddenAnswer: "he is too short", Tier: riddles.Easy},
		{Title: "Ice", Body: "A man hangs in an empty room above a puddle.", HiddenAnswer: "he stood on a block of ice", Tier: riddles.Hard},
	})
	if err != nil {
		t.Fatalf("riddles.New: %v", err)
	}
	clk := &clock{now: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)}
	st := store.NewMemoryStore(func(id string) *game.Controller {
		return game.NewController(bank, oracle, game.WithClock(clk.Now), game.WithID(id))
	}, time.Hour)

	s, err := New(st, Options{
		ClientOrigin:  "http://localhost:5173",
		SessionSecret: "test-secret",
		DailySalt:     "salt",
		Catalog:       bank,
		Labeler:       labeler,
		TickInterval:  10 * time.Millisecond,
		Now:           clk.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, clock: clk}
}

func (f *fixture) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func do(t *testing.T, c *http.Client, method, url string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	f := newFixture(t, stubOracle{reply: "Yes"}, nil)
	var body map[string]any
	if code := do(t, http.DefaultClient, http.MethodGet, f.ts.URL+"/health", nil, &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestGameFlow(t *testing.T) {
	f := newFixture(t, stubOracle{reply: "Yes"}, nil)
	c := f.client(t)

	var snap game.Snapshot
	if code := do(t, c, http.MethodPost, f.ts.URL+"/game/select", map[string]any{"tier": "easy"}, &snap); code != http.StatusOK {
		t.Fatalf("select status = %d", code)
	}
	if snap.State != game.StatePresented || snap.Title != "Stairs" {
		t.Fatalf("select snapshot = %+v", snap)
	}

	var ask game.AskResult
	if code := do(t, c, http.MethodPost, f.ts.URL+"/game/ask", map[string]string{"question": "Is he short?"}, &ask); code != http.StatusOK {
		t.Fatalf("ask status = %d", code)
	}
	if ask.Answer != "Yes" || len(ask.Snapshot.History) != 1 {
		t.Fatalf("ask = %+v", ask)
	}

	var res game.AnswerResult
	if code := do(t, c, http.MethodPost, f.ts.URL+"/game/answer", map[string]string{"answer": "He is too short"}, &res); code != http.StatusOK {
		t.Fatalf("answer status = %d", code)
	}
	if !res.Correct || res.Outcome != game.StateSolved || res.Snapshot.Level != 2 {
		t.Fatalf("answer = %+v", res)
	}

	var state game.Snapshot
	do(t, c, http.MethodGet, f.ts.URL+"/game/state", nil, &state)
	if state.State != game.StateIdle || state.Experience != 10 {
		t.Fatalf("state = %+v", state)
	}
}

func TestErrorResponses(t *testing.T) {
	f := newFixture(t, stubOracle{err: errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonRateLimited, "slow", nil)}, nil)
	c := f.client(t)

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantCode   errs.Code
	}{
		{"ask while idle", "/game/ask", map[string]string{"question": "hello?"}, http.StatusConflict, errs.CodeNoActiveQuestion},
		{"bad tier", "/game/select", map[string]string{"tier": "medium"}, http.StatusBadRequest, errs.CodeInvalidTier},
		{"empty tier bucket", "/game/select", map[string]string{"tier": "normal"}, http.StatusNotFound, errs.CodeNoQuestionsAvailable},
		{"start", "/game/select", map[string]string{"tier": "easy"}, http.StatusOK, ""},
		{"oracle down", "/game/ask", map[string]string{"question": "Is he short?"}, http.StatusBadGateway, errs.CodeOracleUnavailable},
		{"blank answer", "/game/answer", map[string]string{"answer": "  "}, http.StatusBadRequest, errs.CodeEmptyInput},
		{"second select", "/game/select", map[string]string{"tier": "easy"}, http.StatusConflict, errs.CodeAttemptInProgress},
		{"difficulty locked", "/game/difficulty", map[string]string{"tier": "hard"}, http.StatusConflict, errs.CodeDifficultyLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			code := do(t, c, http.MethodPost, f.ts.URL+tt.path, tt.body, &body)
			if code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", code, tt.wantStatus, body)
			}
			if tt.wantCode != "" && body.Error != tt.wantCode {
				t.Fatalf("error = %q, want %q", body.Error, tt.wantCode)
			}
			if tt.wantCode != "" && body.Message == "" {
				t.Fatal("missing user message")
			}
		})
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(t, stubOracle{reply: "No"}, nil)
	alice, bob := f.client(t), f.client(t)

	do(t, alice, http.MethodPost, f.ts.URL+"/game/select", map[string]string{"tier": "hard"}, nil)

	var snap game.Snapshot
	do(t, bob, http.MethodGet, f.ts.URL+"/game/state", nil, &snap)
	if snap.State != game.StateIdle {
		t.Fatalf("bob sees alice's attempt: %+v", snap)
	}
	do(t, alice, http.MethodGet, f.ts.URL+"/game/state", nil, &snap)
	if snap.State != game.StatePresented {
		t.Fatalf("alice lost her attempt: %+v", snap)
	}
}

func TestTamperedCookieStartsFreshSession(t *testing.T) {
	f := newFixture(t, stubOracle{reply: "No"}, nil)
	c := f.client(t)
	do(t, c, http.MethodPost, f.ts.URL+"/game/select", map[string]string{"tier": "easy"}, nil)

	u, _ := url.Parse(f.ts.URL)
	cookies := c.Jar.Cookies(u)
	if len(cookies) != 1 || cookies[0].Name != sessionCookie {
		t.Fatalf("cookies = %v", cookies)
	}
	c.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookie, Value: cookies[0].Value + "x", Path: "/"}})

	var snap game.Snapshot
	do(t, c, http.MethodGet, f.ts.URL+"/game/state", nil, &snap)
	if snap.State != game.StateIdle {
		t.Fatalf("tampered cookie kept the session: %+v", snap)
	}
}

func TestDailyRiddle(t *testing.T) {
	f := newFixture(t, stubOracle{reply: "No"}, nil)

	var res dailyRes
	if code := do(t, http.DefaultClient, http.MethodGet, f.ts.URL+"/riddles/daily?tier=hard", nil, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if res.Title != "Ice" || res.Date != "2026-04-02" || res.TimeLimit != 300 {
		t.Fatalf("daily = %+v", res)
	}
	if strings.Contains(res.Body, "block of ice") {
		t.Fatal("answer leaked")
	}

	var body errorBody
	if code := do(t, http.DefaultClient, http.MethodGet, f.ts.URL+"/riddles/daily?tier=normal", nil, &body); code != http.StatusNotFound {
		t.Fatalf("empty tier status = %d", code)
	}

	c := f.client(t)
	var snap game.Snapshot
	do(t, c, http.MethodPost, f.ts.URL+"/game/select", map[string]any{"tier": "hard", "daily": true}, &snap)
	if snap.Title != "Ice" {
		t.Fatalf("daily select = %+v", snap)
	}
}

func TestTimerSocketReportsExpiry(t *testing.T) {
	f := newFixture(t, stubOracle{reply: "No"}, nil)
	c := f.client(t)
	do(t, c, http.MethodPost, f.ts.URL+"/game/select", map[string]string{"tier": "hard"}, nil)

	u, _ := url.Parse(f.ts.URL)
	header := http.Header{}
	for _, ck := range c.Jar.Cookies(u) {
		header.Add("Cookie", ck.Name+"="+ck.Value)
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.ts.URL, "http")+"/game/timer", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var st game.TimerStatus
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if !st.Limited || st.Seconds != 300 {
		t.Fatalf("first frame = %+v", st)
	}

	f.clock.Set(f.clock.Now().Add(6 * time.Minute))

	expired := false
	for i := 0; i < 50 && !expired; i++ {
		if err := conn.ReadJSON(&st); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		expired = st.Warning == game.WarningExpired
	}
	if !expired || !st.ExpiredNow {
		t.Fatalf("last frame = %+v", st)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("after expiry err = %v, want normal close", err)
	}
}

type stubLabeler struct{ got []byte }

func (l *stubLabeler) Labels(_ context.Context, image []byte) ([]vision.Label, error) {
	l.got = image
	return []vision.Label{{Label: "Cat", Score: 0.97}}, nil
}

func TestLabels(t *testing.T) {
	lab := &stubLabeler{}
	f := newFixture(t, stubOracle{}, lab)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "cat.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("\x89PNG fake"))
	mw.Close()

	resp, err := http.Post(f.ts.URL+"/labels", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var labels []vision.Label
	if err := json.NewDecoder(resp.Body).Decode(&labels); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || len(labels) != 1 || labels[0].Label != "Cat" {
		t.Fatalf("status %d labels %+v", resp.StatusCode, labels)
	}
	if string(lab.got) != "\x89PNG fake" {
		t.Fatalf("labeler got %q", lab.got)
	}
}

func TestLabelsDisabled(t *testing.T) {
	f := newFixture(t, stubOracle{}, nil)
	resp, err := http.Post(f.ts.URL+"/labels", "multipart/form-data", strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSelectWithoutTierUsesSessionDifficulty(t *testing.T) {
	f := newFixture(t, stubOracle{reply: "No"}, nil)
	c := f.client(t)

	var snap game.Snapshot
	if code := do(t, c, http.MethodPost, f.ts.URL+"/game/difficulty", map[string]string{"tier": "hard"}, &snap); code != http.StatusOK {
		t.Fatalf("difficulty status = %d", code)
	}
	if code := do(t, c, http.MethodPost, f.ts.URL+"/game/select", map[string]any{}, &snap); code != http.StatusOK {
		t.Fatalf("select status = %d", code)
	}
	if snap.Title != "Ice" || snap.Difficulty != riddles.Hard {
		t.Fatalf("select snapshot = %+v", snap)
	}
}

package httpserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	votingledger "voteledger/contexts/governance/voting-ledger"
	httptransport "voteledger/contexts/governance/voting-ledger/transport/http"
)

const testSecret = "ledger-test-secret"

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	return New(votingledger.NewInMemoryModule(slog.Default()), testSecret, nil, slog.Default(), ":0")
}

func signSubject(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return signed
}

func doJSON(server *Server, method string, path string, token string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.engine.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePollRequiresToken(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodPost, "/api/v1/polls", "", []byte(`{"poll_id":1}`))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePollRejectsForeignSignature(t *testing.T) {
	server := newTestServer()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	rr := doJSON(server, http.MethodPost, "/api/v1/polls", signed, []byte(`{"poll_id":1}`))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePollRejectsTokenWithoutSubject(t *testing.T) {
	server := newTestServer()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	rr := doJSON(server, http.MethodPost, "/api/v1/polls", signed, []byte(`{"poll_id":1}`))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPollLifecycleOverHTTP(t *testing.T) {
	server := newTestServer()
	admin := signSubject(t, "admin-1")

	pollBody := []byte(`{"poll_id":42,"description":"Best peanut butter","candidate_count":2,"start_time":1700000000000,"end_time":1700086400000}`)
	rr := doJSON(server, http.MethodPost, "/api/v1/polls", admin, pollBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first initialization, got %d body=%s", rr.Code, rr.Body.String())
	}
	var created httptransport.PollResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode poll response failed: %v", err)
	}
	if !created.Created || created.PollID != 42 || len(created.Address) != 64 {
		t.Fatalf("unexpected poll response %+v", created)
	}

	rr = doJSON(server, http.MethodPost, "/api/v1/polls", admin, []byte(`{"poll_id":42,"description":"replayed"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on replayed initialization, got %d body=%s", rr.Code, rr.Body.String())
	}
	var replayed httptransport.PollResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &replayed); err != nil {
		t.Fatalf("decode replay response failed: %v", err)
	}
	if replayed.Created {
		t.Fatal("expected replay to report the existing record")
	}
	if replayed.Description != "Best peanut butter" {
		t.Fatalf("expected the original description back, got %q", replayed.Description)
	}

	rr = doJSON(server, http.MethodPost, "/api/v1/polls/42/candidates", signSubject(t, "skippy"), []byte(`{"name":"Skippy"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 candidate registration, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(server, http.MethodPost, "/api/v1/polls/42/candidates", signSubject(t, "skippy"), []byte(`{"name":"Second Try"}`))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 duplicate candidate, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(server, http.MethodPost, "/api/v1/polls/42/candidates", signSubject(t, "jif"), []byte(`{"name":"Jif"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 second candidate, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(server, http.MethodPost, "/api/v1/polls/42/votes", signSubject(t, "voter-1"), []byte(`{"candidate_id":"skippy"}`))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 vote, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(server, http.MethodPost, "/api/v1/polls/42/votes", signSubject(t, "voter-1"), []byte(`{"candidate_id":"jif"}`))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 second ballot, got %d body=%s", rr.Code, rr.Body.String())
	}
	var failure httptransport.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &failure); err != nil {
		t.Fatalf("decode error response failed: %v", err)
	}
	if failure.Code != "voter_already_voted" {
		t.Fatalf("expected voter_already_voted, got %s", failure.Code)
	}

	rr = doJSON(server, http.MethodGet, "/api/v1/polls/42/results", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 results, got %d body=%s", rr.Code, rr.Body.String())
	}
	var results httptransport.PollResultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results failed: %v", err)
	}
	if results.TotalVotes != 1 || len(results.Standings) != 2 {
		t.Fatalf("unexpected results %+v", results)
	}
	if results.Standings[0].CandidateID != "skippy" || results.Standings[0].Rank != 1 {
		t.Fatalf("expected skippy leading, got %+v", results.Standings[0])
	}

	rr = doJSON(server, http.MethodGet, "/api/v1/polls/42/votes/voter-1", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 ballot read, got %d body=%s", rr.Code, rr.Body.String())
	}
	var ballot httptransport.VoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &ballot); err != nil {
		t.Fatalf("decode ballot failed: %v", err)
	}
	if ballot.CandidateID != "skippy" || ballot.VoterID != "voter-1" {
		t.Fatalf("unexpected ballot %+v", ballot)
	}
}

func TestVoteForUnknownCandidateRejected(t *testing.T) {
	server := newTestServer()
	admin := signSubject(t, "admin-1")
	if rr := doJSON(server, http.MethodPost, "/api/v1/polls", admin, []byte(`{"poll_id":5}`)); rr.Code != http.StatusCreated {
		t.Fatalf("seed poll failed: %d body=%s", rr.Code, rr.Body.String())
	}

	rr := doJSON(server, http.MethodPost, "/api/v1/polls/5/votes", signSubject(t, "voter-1"), []byte(`{"candidate_id":"nobody"}`))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 unknown candidate, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(server, http.MethodGet, "/api/v1/polls/5/votes/voter-1", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected no ballot after rejected vote, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestInvalidPollIDRejected(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodGet, "/api/v1/polls/not-a-number", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUnknownPollReturns404(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodGet, "/api/v1/polls/999", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMalformedBodyRejected(t *testing.T) {
	server := newTestServer()
	rr := doJSON(server, http.MethodPost, "/api/v1/polls", signSubject(t, "admin-1"), []byte(`{"poll_id":`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestListPollsAndCandidates(t *testing.T) {
	server := newTestServer()
	admin := signSubject(t, "admin-1")
	for _, body := range []string{`{"poll_id":1,"description":"one"}`, `{"poll_id":2,"description":"two"}`} {
		if rr := doJSON(server, http.MethodPost, "/api/v1/polls", admin, []byte(body)); rr.Code != http.StatusCreated {
			t.Fatalf("seed poll failed: %d body=%s", rr.Code, rr.Body.String())
		}
	}
	if rr := doJSON(server, http.MethodPost, "/api/v1/polls/1/candidates", signSubject(t, "alpha"), []byte(`{"name":"Alpha"}`)); rr.Code != http.StatusCreated {
		t.Fatalf("seed candidate failed: %d body=%s", rr.Code, rr.Body.String())
	}

	rr := doJSON(server, http.MethodGet, "/api/v1/polls", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 poll list, got %d body=%s", rr.Code, rr.Body.String())
	}
	var polls httptransport.PollListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &polls); err != nil {
		t.Fatalf("decode poll list failed: %v", err)
	}
	if len(polls.Items) != 2 {
		t.Fatalf("expected 2 polls, got %d", len(polls.Items))
	}

	rr = doJSON(server, http.MethodGet, "/api/v1/polls/1/candidates", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 candidate list, got %d body=%s", rr.Code, rr.Body.String())
	}
	var candidates httptransport.CandidateListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &candidates); err != nil {
		t.Fatalf("decode candidate list failed: %v", err)
	}
	if len(candidates.Items) != 1 || candidates.Items[0].CandidateID != "alpha" {
		t.Fatalf("unexpected candidate list %+v", candidates.Items)
	}
}

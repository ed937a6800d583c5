package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeChallonge is an in-memory stand-in for the tournament service. It
// speaks just enough of the v1 API for the bracket coordinator: form
// bodies in, enveloped JSON out, single elimination only.
type fakeChallonge struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	nextID      int64
	tournaments map[string]*fakeTournament

	// fail520 makes the next N requests answer 520.
	fail520 int
	// rejectReports makes match report PUTs answer 422.
	rejectReports bool
}

type fakeTournament struct {
	ID           int64
	Name         string
	State        string
	Participants []*fakeParticipant
	Matches      []*fakeMatch
}

type fakeParticipant struct {
	ID   int64
	Name string
	Seed int
}

type fakeMatch struct {
	ID       int64
	Round    int
	P1, P2   *int64
	Winner   *int64
	Scores   string
	Complete bool

	// winner feeds into NextID at NextSlot (1 or 2); 0 means final.
	NextID   int64
	NextSlot int
	feeds    int // unresolved feeder matches
}

func newFakeChallonge(t *testing.T) *fakeChallonge {
	f := &fakeChallonge{
		t:           t,
		nextID:      100,
		tournaments: make(map[string]*fakeTournament),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeChallonge) URL() string { return f.srv.URL }

func (f *fakeChallonge) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail520 = n
}

func (f *fakeChallonge) id() int64 {
	f.nextID++
	return f.nextID
}

// state reports "open", "pending" or "complete" for a match: a match
// opens once every feeder has completed.
func (m *fakeMatch) state() string {
	switch {
	case m.Complete:
		return "complete"
	case m.feeds > 0:
		return "pending"
	default:
		return "open"
	}
}

func (f *fakeChallonge) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail520 > 0 {
		f.fail520--
		w.WriteHeader(520)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/tournaments")
	if path == ".json" && r.Method == http.MethodPost {
		f.createTournament(w, r)
		return
	}

	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	slug := strings.TrimSuffix(parts[0], ".json")
	tournament, ok := f.tournaments[slug]
	if !ok {
		http.Error(w, `{"errors":["tournament not found"]}`, http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		if r.Method == http.MethodDelete {
			delete(f.tournaments, slug)
			writeJSON(w, map[string]any{})
			return
		}
		writeJSON(w, f.tournamentJSON(tournament, slug))
		return
	}

	switch {
	case parts[1] == "participants.json" && r.Method == http.MethodPost:
		f.addParticipant(w, r, tournament)
	case parts[1] == "participants.json" && r.Method == http.MethodGet:
		out := make([]map[string]any, len(tournament.Participants))
		for i, p := range tournament.Participants {
			out[i] = map[string]any{"participant": map[string]any{"id": p.ID, "name": p.Name, "seed": p.Seed}}
		}
		writeJSON(w, out)
	case parts[1] == "start.json":
		f.startTournament(w, tournament)
	case parts[1] == "matches.json":
		out := make([]map[string]any, len(tournament.Matches))
		for i, m := range tournament.Matches {
			out[i] = map[string]any{"match": matchJSON(m)}
		}
		writeJSON(w, out)
	case parts[1] == "finalize.json":
		f.finalizeTournament(w, tournament)
	case strings.HasPrefix(parts[1], "matches/") && strings.HasSuffix(parts[1], "/reopen.json"):
		raw := strings.TrimSuffix(strings.TrimPrefix(parts[1], "matches/"), "/reopen.json")
		f.reopenMatch(w, tournament, raw)
	case strings.HasPrefix(parts[1], "matches/") && r.Method == http.MethodPut:
		f.reportMatch(w, r, tournament, strings.TrimSuffix(strings.TrimPrefix(parts[1], "matches/"), ".json"))
	default:
		http.Error(w, `{"errors":["unknown endpoint"]}`, http.StatusNotFound)
	}
}

func (f *fakeChallonge) createTournament(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slug := r.PostFormValue("tournament[url]")
	if slug == "" || f.tournaments[slug] != nil {
		http.Error(w, `{"errors":["URL is invalid or taken"]}`, http.StatusUnprocessableEntity)
		return
	}
	tournament := &fakeTournament{
		ID:    f.id(),
		Name:  r.PostFormValue("tournament[name]"),
		State: "pending",
	}
	f.tournaments[slug] = tournament
	writeJSON(w, f.tournamentJSON(tournament, slug))
}

func (f *fakeChallonge) tournamentJSON(t *fakeTournament, slug string) map[string]any {
	return map[string]any{"tournament": map[string]any{
		"id": t.ID, "name": t.Name, "url": slug, "state": t.State,
	}}
}

func (f *fakeChallonge) addParticipant(w http.ResponseWriter, r *http.Request, t *fakeTournament) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	seed, _ := strconv.Atoi(r.PostFormValue("participant[seed]"))
	p := &fakeParticipant{
		ID:   f.id(),
		Name: r.PostFormValue("participant[name]"),
		Seed: seed,
	}
	t.Participants = append(t.Participants, p)
	writeJSON(w, map[string]any{"participant": map[string]any{"id": p.ID, "name": p.Name, "seed": p.Seed}})
}

// startTournament lays out a single-elimination bracket for up to four
// participants, including a bye (open single-participant match) for
// three.
func (f *fakeChallonge) startTournament(w http.ResponseWriter, t *fakeTournament) {
	if t.State != "pending" {
		http.Error(w, `{"errors":["tournament already started"]}`, http.StatusUnprocessableEntity)
		return
	}

	seeded := append([]*fakeParticipant(nil), t.Participants...)
	sort.Slice(seeded, func(i, j int) bool { return seeded[i].Seed < seeded[j].Seed })

	switch len(seeded) {
	case 1:
		// No matches; the coordinator finalizes straight away.
	case 2:
		t.Matches = []*fakeMatch{
			{ID: f.id(), Round: 1, P1: &seeded[0].ID, P2: &seeded[1].ID},
		}
	case 3:
		semi := &fakeMatch{ID: f.id(), Round: 1, P1: &seeded[1].ID, P2: &seeded[2].ID}
		bye := &fakeMatch{ID: f.id(), Round: 1, P1: &seeded[0].ID}
		final := &fakeMatch{ID: f.id(), Round: 2, feeds: 2}
		semi.NextID, semi.NextSlot = final.ID, 2
		bye.NextID, bye.NextSlot = final.ID, 1
		t.Matches = []*fakeMatch{semi, bye, final}
	case 4:
		semi1 := &fakeMatch{ID: f.id(), Round: 1, P1: &seeded[0].ID, P2: &seeded[3].ID}
		semi2 := &fakeMatch{ID: f.id(), Round: 1, P1: &seeded[1].ID, P2: &seeded[2].ID}
		final := &fakeMatch{ID: f.id(), Round: 2, feeds: 2}
		semi1.NextID, semi1.NextSlot = final.ID, 1
		semi2.NextID, semi2.NextSlot = final.ID, 2
		t.Matches = []*fakeMatch{semi1, semi2, final}
	default:
		f.t.Fatalf("fake bracket supports up to 4 participants, got %d", len(seeded))
	}

	t.State = "underway"
	writeJSON(w, f.tournamentJSON(t, ""))
}

func (f *fakeChallonge) reportMatch(w http.ResponseWriter, r *http.Request, t *fakeTournament, rawID string) {
	if f.rejectReports {
		http.Error(w, `{"errors":["Winner cannot be set"]}`, http.StatusUnprocessableEntity)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	matchID, _ := strconv.ParseInt(rawID, 10, 64)
	winnerID, _ := strconv.ParseInt(r.PostFormValue("match[winner_id]"), 10, 64)

	var match *fakeMatch
	for _, m := range t.Matches {
		if m.ID == matchID {
			match = m
			break
		}
	}
	if match == nil {
		http.Error(w, `{"errors":["match not found"]}`, http.StatusNotFound)
		return
	}
	if match.state() != "open" {
		http.Error(w, `{"errors":["match is not open"]}`, http.StatusUnprocessableEntity)
		return
	}
	valid := (match.P1 != nil && *match.P1 == winnerID) || (match.P2 != nil && *match.P2 == winnerID)
	if !valid {
		http.Error(w, `{"errors":["winner is not in this match"]}`, http.StatusUnprocessableEntity)
		return
	}

	winner := winnerID
	match.Winner = &winner
	match.Scores = r.PostFormValue("match[scores_csv]")
	match.Complete = true

	if match.NextID != 0 {
		for _, next := range t.Matches {
			if next.ID != match.NextID {
				continue
			}
			if match.NextSlot == 1 {
				next.P1 = &winner
			} else {
				next.P2 = &winner
			}
			next.feeds--
		}
	}
	writeJSON(w, map[string]any{"match": matchJSON(match)})
}

// reopenMatch reverts a completed match unless its winner already
// played the next round.
func (f *fakeChallonge) reopenMatch(w http.ResponseWriter, t *fakeTournament, rawID string) {
	matchID, _ := strconv.ParseInt(rawID, 10, 64)

	var match *fakeMatch
	for _, m := range t.Matches {
		if m.ID == matchID {
			match = m
			break
		}
	}
	if match == nil {
		http.Error(w, `{"errors":["match not found"]}`, http.StatusNotFound)
		return
	}
	if !match.Complete || t.State == "complete" {
		http.Error(w, `{"errors":["match cannot be reopened"]}`, http.StatusUnprocessableEntity)
		return
	}

	if match.NextID != 0 {
		for _, next := range t.Matches {
			if next.ID != match.NextID {
				continue
			}
			if next.Complete {
				http.Error(w, `{"errors":["match cannot be reopened"]}`, http.StatusUnprocessableEntity)
				return
			}
			if match.NextSlot == 1 {
				next.P1 = nil
			} else {
				next.P2 = nil
			}
			next.feeds++
		}
	}

	match.Winner = nil
	match.Scores = ""
	match.Complete = false
	writeJSON(w, map[string]any{"match": matchJSON(match)})
}

func (f *fakeChallonge) finalizeTournament(w http.ResponseWriter, t *fakeTournament) {
	for _, m := range t.Matches {
		if !m.Complete {
			http.Error(w, `{"errors":["tournament is not complete"]}`, http.StatusUnprocessableEntity)
			return
		}
	}
	if t.State == "complete" {
		http.Error(w, `{"errors":["tournament already finalized"]}`, http.StatusUnprocessableEntity)
		return
	}
	t.State = "complete"
	writeJSON(w, f.tournamentJSON(t, ""))
}

func matchJSON(m *fakeMatch) map[string]any {
	out := map[string]any{
		"id":         m.ID,
		"state":      m.state(),
		"round":      m.Round,
		"scores_csv": m.Scores,
		"player1_id": nil,
		"player2_id": nil,
		"winner_id":  nil,
	}
	if m.P1 != nil {
		out["player1_id"] = *m.P1
	}
	if m.P2 != nil {
		out["player2_id"] = *m.P2
	}
	if m.Winner != nil {
		out["winner_id"] = *m.Winner
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("encode fake response: %v", err))
	}
}

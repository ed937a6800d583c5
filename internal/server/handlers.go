package server

import (
	"net/http"
	"strconv"
	"time"

	"granpix/internal/domain"
	"granpix/internal/middleware"

	"github.com/gin-gonic/gin"
)

type stageResponse struct {
	ID                  string    `json:"id"`
	ChampionshipID      string    `json:"championship_id"`
	Number              int       `json:"number"`
	Name                string    `json:"name"`
	Series              string    `json:"series"`
	ScheduledAt         time.Time `json:"scheduled_at"`
	State               string    `json:"state"`
	QualifyingFinalized bool      `json:"qualifying_finalized"`
	BracketSlug         string    `json:"bracket_slug,omitempty"`
}

func toStageResponse(s *domain.Stage) stageResponse {
	return stageResponse{
		ID:                  s.ID,
		ChampionshipID:      s.ChampionshipID,
		Number:              s.Number,
		Name:                s.Name,
		Series:              s.Series,
		ScheduledAt:         s.ScheduledAt,
		State:               string(s.State),
		QualifyingFinalized: s.QualifyingFinalized,
		BracketSlug:         s.BracketSlug,
	}
}

type participationResponse struct {
	ID             string    `json:"id"`
	StageID        string    `json:"stage_id"`
	TeamID         string    `json:"team_id"`
	CarID          string    `json:"car_id"`
	Kind           string    `json:"kind"`
	DriverID       string    `json:"driver_id,omitempty"`
	Confirmed      bool      `json:"confirmed"`
	QualifyingSeed int       `json:"qualifying_seed,omitempty"`
	EnrolledAt     time.Time `json:"enrolled_at"`
}

func toParticipationResponse(p *domain.Participation) participationResponse {
	return participationResponse{
		ID:             p.ID,
		StageID:        p.StageID,
		TeamID:         p.TeamID,
		CarID:          p.CarID,
		Kind:           string(p.Kind),
		DriverID:       p.DriverID,
		Confirmed:      p.Confirmed,
		QualifyingSeed: p.QualifyingSeed,
		EnrolledAt:     p.EnrolledAt,
	}
}

type candidacyResponse struct {
	ID           string    `json:"id"`
	StageID      string    `json:"stage_id"`
	TeamID       string    `json:"team_id"`
	DriverID     string    `json:"driver_id"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
}

func toCandidacyResponse(c *domain.Candidacy) candidacyResponse {
	return candidacyResponse{
		ID:           c.ID,
		StageID:      c.StageID,
		TeamID:       c.TeamID,
		DriverID:     c.DriverID,
		Status:       string(c.Status),
		RegisteredAt: c.RegisteredAt,
	}
}

type battleResponse struct {
	ID          string `json:"id"`
	StageID     string `json:"stage_id"`
	MatchID     int64  `json:"match_id"`
	Round       int    `json:"round"`
	Team1ID     string `json:"team1_id,omitempty"`
	Team2ID     string `json:"team2_id,omitempty"`
	WinnerTeam  string `json:"winner_team_id,omitempty"`
	ScoresCSV   string `json:"scores_csv,omitempty"`
	State       string `json:"state"`
	PassesTaken int    `json:"passes_taken"`
}

func toBattleResponse(b *domain.Battle) battleResponse {
	return battleResponse{
		ID:          b.ID,
		StageID:     b.StageID,
		MatchID:     b.MatchID,
		Round:       b.Round,
		Team1ID:     b.Team1ID,
		Team2ID:     b.Team2ID,
		WinnerTeam:  b.WinnerTeam,
		ScoresCSV:   b.ScoresCSV,
		State:       b.State,
		PassesTaken: b.PassesTaken,
	}
}

type passResponse struct {
	ID         string  `json:"id"`
	BattleID   string  `json:"battle_id"`
	Number     int     `json:"number"`
	TargetTeam string  `json:"target_team_id"`
	PartID     string  `json:"part_id"`
	PartKind   string  `json:"part_kind"`
	Roll       int     `json:"roll"`
	Damage     float64 `json:"damage"`
	PartFailed bool    `json:"part_failed"`
}

func toPassResponse(p *domain.Pass) passResponse {
	return passResponse{
		ID:         p.ID,
		BattleID:   p.BattleID,
		Number:     p.Number,
		TargetTeam: p.TargetTeam,
		PartID:     p.PartID,
		PartKind:   string(p.PartKind),
		Roll:       p.Roll,
		Damage:     p.Damage,
		PartFailed: p.PartFailed,
	}
}

type createStageRequest struct {
	ChampionshipID string    `json:"championship_id" binding:"required"`
	Number         int       `json:"number" binding:"required"`
	Name           string    `json:"name" binding:"required"`
	Series         string    `json:"series"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

func (s *Server) createStage(c *gin.Context) {
	var req createStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stage, err := s.stages.Create(c.Request.Context(), req.ChampionshipID, req.Number, req.Name, req.Series, req.ScheduledAt)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStageResponse(stage))
}

func (s *Server) getStage(c *gin.Context) {
	stage, err := s.stages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStageResponse(stage))
}

func (s *Server) startQualifying(c *gin.Context) {
	if err := s.stages.StartQualifying(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": string(domain.StageQualifying)})
}

func (s *Server) cancelStage(c *gin.Context) {
	if err := s.stages.ForceCancel(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": string(domain.StageFinished)})
}

type enrollRequest struct {
	TeamID string `json:"team_id" binding:"required"`
	CarID  string `json:"car_id" binding:"required"`
	Kind   string `json:"kind" binding:"required"`
}

func (s *Server) enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !middleware.ActsFor(c, req.TeamID) {
		s.forbidden(c)
		return
	}
	participation, err := s.enrollment.Enroll(c.Request.Context(), c.Param("id"), req.TeamID, req.CarID, domain.ParticipationKind(req.Kind))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toParticipationResponse(participation))
}

func (s *Server) listParticipations(c *gin.Context) {
	participations, err := s.enrollment.Participations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]participationResponse, len(participations))
	for i := range participations {
		out[i] = toParticipationResponse(&participations[i])
	}
	c.JSON(http.StatusOK, out)
}

type addCandidateRequest struct {
	TeamID   string `json:"team_id" binding:"required"`
	DriverID string `json:"driver_id" binding:"required"`
}

func (s *Server) addCandidate(c *gin.Context) {
	var req addCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !middleware.ActsFor(c, req.DriverID) {
		s.forbidden(c)
		return
	}
	candidacy, err := s.enrollment.AddCandidate(c.Request.Context(), c.Param("id"), req.TeamID, req.DriverID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCandidacyResponse(candidacy))
}

func (s *Server) listCandidacies(c *gin.Context) {
	candidacies, err := s.enrollment.Candidacies(c.Request.Context(), c.Param("id"), c.Query("team_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]candidacyResponse, len(candidacies))
	for i := range candidacies {
		out[i] = toCandidacyResponse(&candidacies[i])
	}
	c.JSON(http.StatusOK, out)
}

type allocateRequest struct {
	TeamID string `json:"team_id" binding:"required"`
}

func (s *Server) allocateDriver(c *gin.Context) {
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	candidacy, err := s.enrollment.AllocateNext(c.Request.Context(), c.Param("id"), req.TeamID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCandidacyResponse(candidacy))
}

// actingDriver resolves who the confirm/decline call acts for: the
// token subject, or an explicit driver_id when the caller is an admin.
func actingDriver(c *gin.Context) string {
	if middleware.Role(c) == middleware.RoleAdmin {
		var req struct {
			DriverID string `json:"driver_id"`
		}
		if err := c.ShouldBindJSON(&req); err == nil && req.DriverID != "" {
			return req.DriverID
		}
	}
	return middleware.Subject(c)
}

func (s *Server) confirmParticipation(c *gin.Context) {
	if err := s.enrollment.Confirm(c.Request.Context(), c.Param("id"), actingDriver(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": true})
}

func (s *Server) declineParticipation(c *gin.Context) {
	next, err := s.enrollment.Decline(c.Request.Context(), c.Param("id"), actingDriver(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if next == nil {
		c.JSON(http.StatusOK, gin.H{"declined": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"declined": true, "next": toCandidacyResponse(next)})
}

type upsertScoreRequest struct {
	TeamID string `json:"team_id" binding:"required"`
	Line   int    `json:"line"`
	Angle  int    `json:"angle"`
	Style  int    `json:"style"`
}

func (s *Server) upsertScore(c *gin.Context) {
	var req upsertScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.qualifying.UpsertScore(c.Request.Context(), c.Param("id"), req.TeamID, req.Line, req.Angle, req.Style); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": req.Line + req.Angle + req.Style})
}

func (s *Server) ranking(c *gin.Context) {
	ranked, err := s.qualifying.Ranking(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ranked)
}

func (s *Server) finalizeQualifying(c *gin.Context) {
	if err := s.qualifying.Finalize(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": string(domain.StageBattles)})
}

func (s *Server) createBracket(c *gin.Context) {
	slug, err := s.bracket.Create(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bracket_slug": slug})
}

func (s *Server) syncBracket(c *gin.Context) {
	if err := s.bracket.Sync(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": true})
}

func (s *Server) listBattles(c *gin.Context) {
	battles, err := s.bracket.Battles(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]battleResponse, len(battles))
	for i := range battles {
		out[i] = toBattleResponse(&battles[i])
	}
	c.JSON(http.StatusOK, out)
}

type reportWinnerRequest struct {
	WinnerTeamID string `json:"winner_team_id" binding:"required"`
	ScoresCSV    string `json:"scores_csv"`
}

func (s *Server) reportWinner(c *gin.Context) {
	matchID, err := strconv.ParseInt(c.Param("match_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "match_id must be an integer"})
		return
	}
	var req reportWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.bracket.ReportWinner(c.Request.Context(), c.Param("id"), matchID, req.WinnerTeamID, req.ScoresCSV); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"winner_team_id": req.WinnerTeamID})
}

func (s *Server) reopenMatch(c *gin.Context) {
	matchID, err := strconv.ParseInt(c.Param("match_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "match_id must be an integer"})
		return
	}
	if err := s.bracket.ReopenMatch(c.Request.Context(), c.Param("id"), matchID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match_id": matchID, "state": "open"})
}

func (s *Server) advanceWalkovers(c *gin.Context) {
	advanced, err := s.bracket.AdvanceWalkovers(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advanced": advanced})
}

func (s *Server) finalizeStage(c *gin.Context) {
	if err := s.bracket.Finalize(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": string(domain.StageFinished)})
}

func (s *Server) listClassification(c *gin.Context) {
	placements, err := s.classification.ListByStage(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	type placementResponse struct {
		TeamID          string `json:"team_id"`
		Position        int    `json:"position"`
		RoundReached    int    `json:"round_reached"`
		QualifyingTotal int    `json:"qualifying_total"`
	}
	out := make([]placementResponse, len(placements))
	for i, p := range placements {
		out[i] = placementResponse{
			TeamID:          p.TeamID,
			Position:        p.Position,
			RoundReached:    p.RoundReached,
			QualifyingTotal: p.QualifyingTotal,
		}
	}
	c.JSON(http.StatusOK, out)
}

type executePassRequest struct {
	Side     int    `json:"side" binding:"required"`
	PartKind string `json:"part_kind" binding:"required"`
	Roll     int    `json:"roll" binding:"required"`
}

func (s *Server) executePass(c *gin.Context) {
	var req executePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pass, err := s.battles.ExecutePass(c.Request.Context(), c.Param("id"), domain.BattleSide(req.Side), domain.PartKind(req.PartKind), req.Roll)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPassResponse(pass))
}

func (s *Server) listPasses(c *gin.Context) {
	passes, err := s.battles.Passes(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]passResponse, len(passes))
	for i := range passes {
		out[i] = toPassResponse(&passes[i])
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) partSnapshot(c *gin.Context) {
	snapshot, err := s.battles.PartSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	type partStatusResponse struct {
		Kind          string  `json:"kind"`
		PartID        string  `json:"part_id,omitempty"`
		Name          string  `json:"name,omitempty"`
		Durability    float64 `json:"durability"`
		MaxDurability float64 `json:"max_durability"`
		Failed        bool    `json:"failed"`
		Installed     bool    `json:"installed"`
	}
	out := make([]partStatusResponse, len(snapshot))
	for i, p := range snapshot {
		out[i] = partStatusResponse{
			Kind:          string(p.Kind),
			PartID:        p.PartID,
			Name:          p.Name,
			Durability:    p.Durability,
			MaxDurability: p.MaxDurability,
			Failed:        p.Failed,
			Installed:     p.Installed,
		}
	}
	c.JSON(http.StatusOK, out)
}

type installPartRequest struct {
	TeamID string `json:"team_id" binding:"required"`
	CarID  string `json:"car_id" binding:"required"`
	PartID string `json:"part_id" binding:"required"`
}

func (s *Server) installPart(c *gin.Context) {
	var req installPartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !middleware.ActsFor(c, req.TeamID) {
		s.forbidden(c)
		return
	}
	if err := s.garage.InstallPart(c.Request.Context(), req.TeamID, req.CarID, req.PartID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installed": true})
}

type removePartRequest struct {
	TeamID string `json:"team_id" binding:"required"`
	PartID string `json:"part_id" binding:"required"`
}

func (s *Server) removePart(c *gin.Context) {
	var req removePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !middleware.ActsFor(c, req.TeamID) {
		s.forbidden(c)
		return
	}
	if err := s.garage.RemovePart(c.Request.Context(), req.TeamID, req.PartID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

type activateCarRequest struct {
	TeamID string `json:"team_id" binding:"required"`
	CarID  string `json:"car_id" binding:"required"`
}

func (s *Server) activateCar(c *gin.Context) {
	var req activateCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !middleware.ActsFor(c, req.TeamID) {
		s.forbidden(c)
		return
	}
	if err := s.garage.ActivateCar(c.Request.Context(), req.TeamID, req.CarID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true})
}

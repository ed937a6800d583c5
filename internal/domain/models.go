package domain

import (
	"time"
)

type Stage struct {
	ID                  string
	ChampionshipID      string
	Number              int
	Name                string
	ScheduledAt         time.Time
	Series              string
	State               StageState
	QualifyingFinalized bool
	// BracketSlug is empty until the external tournament is created.
	BracketSlug string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Team struct {
	ID          string
	Name        string
	Credits     float64
	PixBalance  float64
	Series      string
	ActiveCarID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Car struct {
	ID        string
	ModelID   string
	TeamID    string
	Number    int
	Brand     string
	Model     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PartKind string

const (
	PartEngine       PartKind = "motor"
	PartTransmission PartKind = "cambio"
	PartSuspension   PartKind = "suspensao"
	PartAngleKit     PartKind = "kit_angulo"
	PartDifferential PartKind = "diferencial"
)

// PartKinds is the canonical presentation order for a car's installed set.
var PartKinds = []PartKind{PartEngine, PartTransmission, PartSuspension, PartAngleKit, PartDifferential}

func (k PartKind) Valid() bool {
	for _, v := range PartKinds {
		if k == v {
			return true
		}
	}
	return false
}

type Part struct {
	ID               string
	Kind             PartKind
	CatalogID        string
	Name             string
	MaxDurability    float64
	Durability       float64
	BreakCoefficient float64
	Installed        bool
	CarID            string
	Failed           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *Part) Broken() bool {
	return p.Durability <= 0
}

type Driver struct {
	ID        string
	Name      string
	Series    string
	Wins      int
	Losses    int
	Draws     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ParticipationKind string

const (
	HasDriver   ParticipationKind = "tenho_piloto"
	NeedsDriver ParticipationKind = "precisa_piloto"
)

type Participation struct {
	ID             string
	StageID        string
	TeamID         string
	CarID          string
	Kind           ParticipationKind
	DriverID       string
	Confirmed      bool
	QualifyingSeed int
	EnrolledAt     time.Time
}

type CandidacyStatus string

const (
	CandidacyPending  CandidacyStatus = "pendente"
	CandidacyAssigned CandidacyStatus = "designado"
	CandidacyDeclined CandidacyStatus = "recusado"
)

type Candidacy struct {
	ID           string
	StageID      string
	TeamID       string
	DriverID     string
	Status       CandidacyStatus
	RegisteredAt time.Time
}

const (
	MaxLineScore  = 40
	MaxAngleScore = 30
	MaxStyleScore = 30
)

type QualifyingScore struct {
	ID        string
	StageID   string
	TeamID    string
	Line      int
	Angle     int
	Style     int
	UpdatedAt time.Time
}

func (s QualifyingScore) Total() int {
	return s.Line + s.Angle + s.Style
}

// Battle mirrors one match of the external bracket. Player ids are
// external participant ids; team ids are resolved from the participant
// mapping stored at seeding time.
type Battle struct {
	ID          string
	StageID     string
	MatchID     int64
	Round       int
	Player1ID   int64
	Player2ID   int64
	Team1ID     string
	Team2ID     string
	WinnerID    int64
	WinnerTeam  string
	ScoresCSV   string
	State       string
	PassesTaken int
	UpdatedAt   time.Time
}

const MaxPassesPerBattle = 2

type BattleSide int

const (
	SideTeam1 BattleSide = 1
	SideTeam2 BattleSide = 2
)

type Pass struct {
	ID         string
	BattleID   string
	StageID    string
	Number     int
	TargetTeam string
	PartID     string
	PartKind   PartKind
	Roll       int
	Damage     float64
	PartFailed bool
	CreatedAt  time.Time
}

type Placement struct {
	ID       string
	StageID  string
	TeamID   string
	Position int
	// RoundReached is 0 for teams that never entered the bracket.
	RoundReached    int
	QualifyingTotal int
}

// ClassificationFinalized is emitted when a stage reaches its terminal
// state. Championship standings are recomputed downstream.
type ClassificationFinalized struct {
	StageID        string
	ChampionshipID string
	Placements     []Placement
}

// PartStatus is one slot of the ordered durability snapshot shown for a
// car during battles.
type PartStatus struct {
	Kind          PartKind
	PartID        string
	Name          string
	Durability    float64
	MaxDurability float64
	Failed        bool
	Installed     bool
}

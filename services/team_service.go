// services/team_service.go - Team lifecycle and membership
package services

import (
	"crypto/rand"
	"errors"
	"log"
	"time"

	"mindhunt/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TeamService creates teams, resolves the team a user plays for, and
// handles the staff progress reset.
type TeamService struct {
	db      *gorm.DB
	store   ProgressStore
	unlocks *UnlockService
	hints   *HintScheduler
}

func NewTeamService(db *gorm.DB, unlocks *UnlockService, hints *HintScheduler) *TeamService {
	return &TeamService{db: db, unlocks: unlocks, hints: hints}
}

const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateJoinCode() string {
	bytes := make([]byte, 5)
	rand.Read(bytes)
	code := make([]byte, 5)
	for i, b := range bytes {
		code[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(code)
}

// CreateTeam registers a team for a hunt and immediately bootstraps
// its unlock state so the root episodes are linked from the start.
func (s *TeamService) CreateTeam(name string, hunt *models.Hunt, creator *models.User) (*models.Team, error) {
	if name == "" {
		return nil, errors.New("team name is required")
	}

	team := &models.Team{
		Name:     name,
		JoinCode: generateJoinCode(),
		Token:    uuid.NewString(),
		HuntID:   hunt.ID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return err
		}
		if creator != nil {
			if err := tx.Model(team).Association("Members").Append(creator); err != nil {
				return err
			}
		}
		_, err := s.unlocks.Recompute(tx, team, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

// JoinTeam adds a user to the team matching the join code within the
// given hunt.
func (s *TeamService) JoinTeam(user *models.User, hunt *models.Hunt, joinCode string) (*models.Team, error) {
	var team models.Team
	if err := s.db.Where("hunt_id = ? AND join_code = ?", hunt.ID, joinCode).
		First(&team).Error; err != nil {
		return nil, errors.New("team not found")
	}

	if existing, _ := s.TeamForUser(hunt.ID, user.ID); existing != nil {
		return nil, errors.New("already on a team for this hunt")
	}

	if err := s.db.Model(&team).Association("Members").Append(user); err != nil {
		return nil, err
	}
	return &team, nil
}

// TeamForUser returns the team a user plays the hunt with, or nil.
func (s *TeamService) TeamForUser(huntID, userID uint) (*models.Team, error) {
	var team models.Team
	err := s.db.Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ? AND teams.hunt_id = ?", userID, huntID).
		First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// TeamByID returns a team by primary key.
func (s *TeamService) TeamByID(teamID uint) (*models.Team, error) {
	var team models.Team
	if err := s.db.First(&team, teamID).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

// TeamsForHunt lists every team registered for a hunt.
func (s *TeamService) TeamsForHunt(huntID uint) ([]models.Team, error) {
	var teams []models.Team
	err := s.db.Where("hunt_id = ?", huntID).Find(&teams).Error
	return teams, err
}

// Reset wipes all progress and guesses for a team and cancels its
// pending hint timers. The unlock state is left empty; the next
// recompute re-bootstraps the root episodes.
func (s *TeamService) Reset(team *models.Team) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.store.Reset(tx, team.ID)
	})
	if err != nil {
		return err
	}
	if s.hints != nil {
		s.hints.CancelTeam(team.ID)
	}
	log.Printf("Progress reset for team %s", team.Name)
	return nil
}

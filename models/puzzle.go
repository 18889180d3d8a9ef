// models/puzzle.go - Puzzle, Eureka and Hint catalog models
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

var answerCharset = regexp.MustCompile(`^[A-Za-z0-9 ()]+$`)

// Puzzle is a single solvable challenge inside an episode. Unlocks
// lists the puzzles this puzzle is a prerequisite for; the edges form
// a DAG within the episode. Number is kept contiguous 1..N per
// episode by CatalogService.SavePuzzle.
type Puzzle struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	EpisodeID   uint      `json:"episode_id" gorm:"not null;index"`
	Episode     *Episode  `json:"episode,omitempty" gorm:"foreignKey:EpisodeID"`
	Name        string    `json:"name" gorm:"not null;size:200"`
	Number      int       `json:"number" gorm:"not null;default:1"`
	Code        string    `json:"code" gorm:"uniqueIndex;not null;size:12"`
	Answer      string    `json:"-" gorm:"not null;size:100"`
	AnswerRegex string    `json:"-" gorm:"size:100"`
	ExtraData   string    `json:"extra_data,omitempty" gorm:"size:200"`

	// No column default: GORM skips zero-valued fields that carry a
	// default tag on insert, which would turn threshold 0 (always
	// eligible) into threshold 1.
	NumRequiredToUnlock int       `json:"num_required_to_unlock" gorm:"not null"`
	Unlocks             []*Puzzle `json:"-" gorm:"many2many:puzzle_unlocks;joinForeignKey:PrereqID;joinReferences:TargetID"`

	Eurekas   []Eureka  `json:"-" gorm:"foreignKey:PuzzleID"`
	Hints     []Hint    `json:"-" gorm:"foreignKey:PuzzleID"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Puzzle) TableName() string {
	return "puzzles"
}

// Normalize uppercases a guess or answer and strips spaces. Answer
// comparison and eureka matching both run on normalized text.
func Normalize(text string) string {
	return strings.ToUpper(strings.ReplaceAll(text, " ", ""))
}

// CheckAnswer reports whether the normalized text matches the
// canonical answer, or the answer regex when one is configured. The
// regex must cover the full normalized string, case-insensitively.
func (p *Puzzle) CheckAnswer(text string) bool {
	normalized := Normalize(text)
	if normalized == Normalize(p.Answer) {
		return true
	}
	if p.AnswerRegex == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)^(?:` + p.AnswerRegex + `)$`)
	if err != nil {
		return false
	}
	return re.MatchString(normalized)
}

// Validate checks the hard configuration invariants. Violations are
// field-level errors and must block the write.
func (p *Puzzle) Validate() error {
	if len(p.Code) < 3 || len(p.Code) > 12 {
		return fmt.Errorf("code: must be 3-12 characters, got %q", p.Code)
	}
	if !answerCharset.MatchString(p.Answer) {
		return fmt.Errorf("answer: %q may only contain letters, digits, spaces and parentheses", p.Answer)
	}
	if p.AnswerRegex != "" {
		if strings.ContainsAny(p.AnswerRegex, " \t\n") {
			return fmt.Errorf("answer_regex: must not contain whitespace")
		}
		if _, err := regexp.Compile(p.AnswerRegex); err != nil {
			return fmt.Errorf("answer_regex: %v", err)
		}
	}
	if p.NumRequiredToUnlock < 0 {
		return fmt.Errorf("num_required_to_unlock: must not be negative")
	}
	return nil
}

// Warnings returns soft configuration problems that staff must
// confirm but that do not block the write. numPrereqs is the number
// of puzzles listing this one in their Unlocks set.
func (p *Puzzle) Warnings(numPrereqs int) []string {
	var warnings []string
	if strings.Contains(p.Answer, "(") && p.AnswerRegex == "" {
		warnings = append(warnings,
			"answer contains parenthetical alternatives but no answer_regex is set")
	}
	if p.NumRequiredToUnlock > numPrereqs {
		warnings = append(warnings,
			fmt.Sprintf("num_required_to_unlock (%d) exceeds the %d configured prerequisites; the puzzle is unreachable",
				p.NumRequiredToUnlock, numPrereqs))
	}
	if p.NumRequiredToUnlock == 0 && numPrereqs > 0 {
		warnings = append(warnings,
			"num_required_to_unlock is 0 but prerequisites exist; the puzzle is always unlocked")
	}
	return warnings
}

// Eureka is a regex-matched partial-credit response attached to a
// puzzle. Admin-only eurekas are recorded for staff but never shown
// to the submitting team. Soft-deleted eurekas are skipped during
// evaluation.
type Eureka struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	PuzzleID  uint           `json:"puzzle_id" gorm:"not null;index"`
	Puzzle    *Puzzle        `json:"puzzle,omitempty" gorm:"foreignKey:PuzzleID"`
	Regex     string         `json:"regex" gorm:"not null;size:400"`
	Answer    string         `json:"answer" gorm:"not null;size:400"`
	Feedback  string         `json:"feedback" gorm:"size:255"`
	AdminOnly bool           `json:"admin_only" gorm:"default:false"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Eureka) TableName() string {
	return "eurekas"
}

// Matches tests the eureka regex against an already-normalized guess.
// Spaces in the stored regex are stripped so authors can write it
// either way.
func (e *Eureka) Matches(normalized string) bool {
	pattern := strings.ReplaceAll(e.Regex, " ", "")
	re, err := regexp.Compile(`(?i)^(?:` + pattern + `)$`)
	if err != nil {
		return false
	}
	return re.MatchString(normalized)
}

// FeedbackFor returns the eureka's own feedback, falling back to the
// hunt default when empty.
func (e *Eureka) FeedbackFor(hunt *Hunt) string {
	if e.Feedback != "" {
		return e.Feedback
	}
	if hunt != nil {
		return hunt.EurekaFeedback
	}
	return ""
}

// Hint is a timed reveal for a puzzle. Delay counts from the team's
// effective start time for the puzzle. Once NumberEurekas of the
// linked eurekas are discovered, the firing target may shorten to the
// latest qualifying discovery plus ShortDelay.
type Hint struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	PuzzleID      uint          `json:"puzzle_id" gorm:"not null;index"`
	Puzzle        *Puzzle       `json:"puzzle,omitempty" gorm:"foreignKey:PuzzleID"`
	Text          string        `json:"text" gorm:"not null;size:400"`
	Delay         time.Duration `json:"delay" gorm:"not null"`
	ShortDelay    time.Duration `json:"short_delay" gorm:"not null"`
	NumberEurekas int           `json:"number_eurekas" gorm:"not null"`
	Eurekas       []Eureka      `json:"-" gorm:"many2many:hint_eurekas"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (Hint) TableName() string {
	return "hints"
}

// models/puzzle_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "FOXGLOVE", Normalize("fox glove"))
	assert.Equal(t, "ABC123", Normalize("  a b c 1 2 3  "))
}

func TestCheckAnswer(t *testing.T) {
	plain := &Puzzle{Answer: "FOXGLOVE"}
	assert.True(t, plain.CheckAnswer("FOXGLOVE"))
	assert.True(t, plain.CheckAnswer("fox glove"))
	assert.False(t, plain.CheckAnswer("FOX"))

	regexed := &Puzzle{Answer: "CAT", AnswerRegex: "CATS?"}
	assert.True(t, regexed.CheckAnswer("CAT"))
	assert.True(t, regexed.CheckAnswer("cats"))
	assert.False(t, regexed.CheckAnswer("DOG"))
	assert.False(t, regexed.CheckAnswer("CATSS"), "regex must match the whole guess")

	broken := &Puzzle{Answer: "OK", AnswerRegex: "(["}
	assert.True(t, broken.CheckAnswer("OK"), "exact match still works")
	assert.False(t, broken.CheckAnswer("ANYTHING"))
}

func TestPuzzleValidate(t *testing.T) {
	good := &Puzzle{Code: "ABC123", Answer: "CAT(S)", AnswerRegex: "CATS?"}
	assert.NoError(t, good.Validate())

	assert.Error(t, (&Puzzle{Code: "AB", Answer: "OK"}).Validate())
	assert.Error(t, (&Puzzle{Code: "WAYTOOLONGCODE", Answer: "OK"}).Validate())
	assert.Error(t, (&Puzzle{Code: "ABC", Answer: "BAD_CHAR"}).Validate())
	assert.Error(t, (&Puzzle{Code: "ABC", Answer: "OK", AnswerRegex: "A B"}).Validate())
	assert.Error(t, (&Puzzle{Code: "ABC", Answer: "OK", AnswerRegex: "(["}).Validate())
	assert.Error(t, (&Puzzle{Code: "ABC", Answer: "OK", NumRequiredToUnlock: -1}).Validate())
}

func TestPuzzleWarnings(t *testing.T) {
	parenthetical := &Puzzle{Code: "ABC", Answer: "CAT(S)"}
	assert.NotEmpty(t, parenthetical.Warnings(0))

	unreachable := &Puzzle{Code: "ABC", Answer: "OK", NumRequiredToUnlock: 3}
	assert.NotEmpty(t, unreachable.Warnings(2))

	alwaysOpen := &Puzzle{Code: "ABC", Answer: "OK", NumRequiredToUnlock: 0}
	assert.NotEmpty(t, alwaysOpen.Warnings(2))

	fine := &Puzzle{Code: "ABC", Answer: "OK", NumRequiredToUnlock: 1}
	assert.Empty(t, fine.Warnings(2))
}

func TestEurekaMatches(t *testing.T) {
	eureka := &Eureka{Regex: "AL MOST"}
	assert.True(t, eureka.Matches("ALMOST"), "spaces in the stored regex are ignored")
	assert.False(t, eureka.Matches("ALMOSTLY"))
}

func TestEurekaFeedbackFallback(t *testing.T) {
	hunt := &Hunt{EurekaFeedback: "Keep going!"}
	own := &Eureka{Feedback: "Nice find"}
	assert.Equal(t, "Nice find", own.FeedbackFor(hunt))

	bare := &Eureka{}
	assert.Equal(t, "Keep going!", bare.FeedbackFor(hunt))
	assert.Equal(t, "", bare.FeedbackFor(nil))
}

func TestEpisodeHeadstartFor(t *testing.T) {
	ep := &Episode{Headstarts: DurationList{time.Hour, 30 * time.Minute}}
	assert.Equal(t, time.Hour, ep.HeadstartFor(0))
	assert.Equal(t, 30*time.Minute, ep.HeadstartFor(1))
	assert.Zero(t, ep.HeadstartFor(2))
	assert.Zero(t, ep.HeadstartFor(-1))
}

func TestHuntWindow(t *testing.T) {
	now := time.Now()
	hunt := &Hunt{StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
	assert.False(t, hunt.IsLocked(now))
	assert.True(t, hunt.IsOpen(now))
	assert.False(t, hunt.IsFinished(now))

	assert.True(t, hunt.IsLocked(now.Add(-2*time.Hour)))
	assert.True(t, hunt.IsFinished(now.Add(2*time.Hour)))
	assert.True(t, hunt.IsFinished(hunt.EndDate), "the window closes exactly at the end date")
}

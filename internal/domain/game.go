package domain

import (
	"fmt"
	"sort"
	"time"
)

// GameSettings holds configurable game parameters
type GameSettings struct {
	MinPlayers      int           `json:"minPlayers"`
	MaxPlayers      int           `json:"maxPlayers"`
	DirectTimeLimit time.Duration `json:"directTimeLimit"`
	ChoiceTimeLimit time.Duration `json:"choiceTimeLimit"`
	ResultDelay     time.Duration `json:"resultDelay"`
	WinThreshold    int           `json:"winThreshold"`
	DirectPoints    int           `json:"directPoints"`
	ChoicePoints    int           `json:"choicePoints"`
}

// DefaultGameSettings returns the default game settings
func DefaultGameSettings() GameSettings {
	return GameSettings{
		MinPlayers:      2,
		MaxPlayers:      6,
		DirectTimeLimit: 45 * time.Second,
		ChoiceTimeLimit: 20 * time.Second,
		ResultDelay:     7 * time.Second,
		WinThreshold:    10,
		DirectPoints:    2,
		ChoicePoints:    1,
	}
}

// TimeLimit returns the countdown length in whole seconds for a timed stage
func (s GameSettings) TimeLimit(stage Stage) int {
	switch stage {
	case StageDirect:
		return int(s.DirectTimeLimit / time.Second)
	case StageMultipleChoice:
		return int(s.ChoiceTimeLimit / time.Second)
	}
	return 0
}

func (s GameSettings) minPlayers() int {
	if s.MinPlayers < 2 {
		return 2
	}
	return s.MinPlayers
}

// ValidatePlayers checks a roster can start a game under these settings
func (s GameSettings) ValidatePlayers(players []Player) error {
	return validatePlayers(players, s.minPlayers(), s.MaxPlayers)
}

// GameState is the complete state of one game. It is a value: every
// transition returns a new GameState and leaves the receiver untouched.
type GameState struct {
	ID                 string       `json:"id"`
	Status             Status       `json:"status"`
	Players            []Player     `json:"players"`
	CurrentPlayerIndex int          `json:"currentPlayerIndex"`
	CurrentQuestion    *Question    `json:"currentQuestion,omitempty"`
	Stage              Stage        `json:"stage,omitempty"`
	Message            string       `json:"message"`
	SelectedOption     string       `json:"selectedOption,omitempty"`
	LastAnswerCorrect  bool         `json:"lastAnswerCorrect"`
	TimeRemaining      int          `json:"timeRemaining"`
	Turn               int          `json:"turn"`
	UsedQuestionIDs    []string     `json:"usedQuestionIds"`
	Settings           GameSettings `json:"-"`
}

// NewGameState creates a game in SETUP
func NewGameState(id string, settings GameSettings) GameState {
	return GameState{
		ID:                 id,
		Status:             StatusSetup,
		CurrentPlayerIndex: -1,
		Settings:           settings,
	}
}

func (s GameState) clone() GameState {
	next := s
	next.Players = clonePlayers(s.Players)
	next.UsedQuestionIDs = make([]string, len(s.UsedQuestionIDs))
	copy(next.UsedQuestionIDs, s.UsedQuestionIDs)
	return next
}

func (s GameState) inStage(stage Stage) bool {
	return s.Status == StatusPlaying && s.Stage == stage && s.CurrentQuestion != nil
}

// Public returns the state as screens may see it: while a question is
// still open its correct answer and explanation are blanked.
func (s GameState) Public() GameState {
	if s.CurrentQuestion == nil || s.Stage == StageResult || s.Status == StatusFinished {
		return s
	}
	q := *s.CurrentQuestion
	q.CorrectAnswer = ""
	q.Explanation = ""
	s.CurrentQuestion = &q
	return s
}

// CurrentPlayer returns the player whose turn it is
func (s GameState) CurrentPlayer() (Player, bool) {
	if s.Status != StatusPlaying || s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return Player{}, false
	}
	return s.Players[s.CurrentPlayerIndex], true
}

// Start begins the first turn with q for the given players
func (s GameState) Start(players []Player, q Question) (GameState, error) {
	if s.Status != StatusSetup {
		return s, ErrGameStarted
	}
	if err := validatePlayers(players, s.Settings.minPlayers(), s.Settings.MaxPlayers); err != nil {
		return s, err
	}
	if err := q.Validate(); err != nil {
		return s, err
	}

	next := s.clone()
	next.Status = StatusPlaying
	next.Players = clonePlayers(players)
	next.CurrentPlayerIndex = 0
	next.Turn = 1
	next.beginTurn(q)
	next.Message = "Answer directly for two points, or wait for the choices for one point."
	return next, nil
}

func (s *GameState) beginTurn(q Question) {
	s.CurrentQuestion = &q
	s.Stage = StageDirect
	s.SelectedOption = ""
	s.LastAnswerCorrect = false
	s.TimeRemaining = s.Settings.TimeLimit(StageDirect)
	s.UsedQuestionIDs = append(s.UsedQuestionIDs, q.ID)
}

func (s *GameState) award(points int) {
	s.Players[s.CurrentPlayerIndex].Score += points
}

func (s *GameState) toResult(correct bool, message string) {
	s.Stage = StageResult
	s.LastAnswerCorrect = correct
	s.TimeRemaining = 0
	s.Message = message
}

// GradeDirect applies the grading verdict for a direct answer
func (s GameState) GradeDirect(correct bool) (GameState, error) {
	if !s.inStage(StageDirect) {
		return s, ErrInvalidStage
	}

	next := s.clone()
	if !correct {
		next.Stage = StageMultipleChoice
		next.TimeRemaining = next.Settings.TimeLimit(StageMultipleChoice)
		next.Message = "Not quite. Try the choices now."
		return next, nil
	}

	next.award(next.Settings.DirectPoints)
	name := next.Players[next.CurrentPlayerIndex].Name
	next.toResult(true, fmt.Sprintf("Well done, %s! Correct answer, two points.", name))
	return next, nil
}

// SelectOption applies a multiple-choice pick. The second return is false,
// and the state unchanged, unless the stage is MULTIPLE_CHOICE with no
// option selected yet.
func (s GameState) SelectOption(option string) (GameState, bool) {
	if !s.inStage(StageMultipleChoice) || s.SelectedOption != "" || option == "" {
		return s, false
	}

	next := s.clone()
	next.SelectedOption = option
	if next.CurrentQuestion.IsCorrect(option) {
		next.award(next.Settings.ChoicePoints)
		next.toResult(true, "Very nice! Correct answer, one point.")
	} else {
		next.toResult(false, fmt.Sprintf("Sorry, that is not correct. The answer is: %s", next.CurrentQuestion.CorrectAnswer))
	}
	return next, true
}

// Expire applies a countdown reaching zero. It reports false when the stage
// has no countdown.
func (s GameState) Expire() (GameState, bool) {
	switch {
	case s.inStage(StageDirect):
		next := s.clone()
		next.Stage = StageMultipleChoice
		next.TimeRemaining = next.Settings.TimeLimit(StageMultipleChoice)
		next.Message = "Time is up for the direct answer! Pick from the choices."
		return next, true
	case s.inStage(StageMultipleChoice) && s.SelectedOption == "":
		next := s.clone()
		next.toResult(false, fmt.Sprintf("Time is up! The correct answer is: %s", next.CurrentQuestion.CorrectAnswer))
		return next, true
	}
	return s, false
}

// Tick decrements the countdown by one second, never below zero
func (s GameState) Tick() GameState {
	if s.Status != StatusPlaying || !s.Stage.Timed() || s.TimeRemaining <= 0 {
		return s
	}
	next := s.clone()
	next.TimeRemaining--
	return next
}

// HasWinner reports whether any player reached the win threshold
func (s GameState) HasWinner() bool {
	return len(s.Winners()) > 0
}

// Winners returns every player at or above the win threshold, in turn order
func (s GameState) Winners() []Player {
	var winners []Player
	for _, p := range s.Players {
		if p.Score >= s.Settings.WinThreshold {
			winners = append(winners, p)
		}
	}
	return winners
}

// Finish ends the game from the RESULT stage once a winner exists
func (s GameState) Finish() (GameState, error) {
	if !s.inStage(StageResult) {
		return s, ErrInvalidStage
	}
	if !s.HasWinner() {
		return s, ErrInvalidStage
	}

	next := s.clone()
	next.Status = StatusFinished
	next.CurrentQuestion = nil
	next.SelectedOption = ""
	next.TimeRemaining = 0
	next.Message = fmt.Sprintf("The game is over! Congratulations, %s.", next.Winners()[0].Name)
	if winners := next.Winners(); len(winners) > 1 {
		next.Message = fmt.Sprintf("The game is over! %d players reached %d points.", len(winners), next.Settings.WinThreshold)
	}
	return next, nil
}

// NextTurn hands q to the next player in turn order
func (s GameState) NextTurn(q Question) (GameState, error) {
	if !s.inStage(StageResult) {
		return s, ErrInvalidStage
	}
	if s.HasWinner() {
		return s, ErrGameFinished
	}
	if err := q.Validate(); err != nil {
		return s, err
	}

	next := s.clone()
	next.CurrentPlayerIndex = (s.CurrentPlayerIndex + 1) % len(s.Players)
	next.Turn++
	next.beginTurn(q)
	next.Message = fmt.Sprintf("It is now %s's turn.", next.Players[next.CurrentPlayerIndex].Name)
	return next, nil
}

// Ranking returns the players by score descending, ties in turn order
func (s GameState) Ranking() []Player {
	ranking := clonePlayers(s.Players)
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Score > ranking[j].Score
	})
	return ranking
}

// TotalScore returns the sum of all player scores
func (s GameState) TotalScore() int {
	total := 0
	for _, p := range s.Players {
		total += p.Score
	}
	return total
}

// GameSummary is the record kept for a finished game
type GameSummary struct {
	GameID     string    `json:"gameId"`
	Turns      int       `json:"turns"`
	Ranking    []Player  `json:"ranking"`
	Winners    []Player  `json:"winners"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Summary builds the record for a finished game
func (s GameState) Summary(finishedAt time.Time) GameSummary {
	return GameSummary{
		GameID:     s.ID,
		Turns:      s.Turn,
		Ranking:    s.Ranking(),
		Winners:    s.Winners(),
		FinishedAt: finishedAt,
	}
}

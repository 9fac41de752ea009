package domain

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
)

func testPlayers(names ...string) []Player {
	players := make([]Player, len(names))
	for i, name := range names {
		players[i] = Player{ID: "p" + string(rune('1'+i)), Name: name}
	}
	return players
}

func testQuestion(id string) Question {
	return Question{
		ID:            id,
		Text:          "Who built the Kaaba with his son?",
		CorrectAnswer: "Ibrahim",
		Options:       []string{"Ibrahim", "Musa", "Isa", "Nuh"},
		Category:      CategoryProphetStories,
		Explanation:   "Ibrahim and Ismail raised its foundations.",
	}
}

func startedGame(t *testing.T, settings GameSettings, names ...string) GameState {
	t.Helper()
	s, err := NewGameState("g1", settings).Start(testPlayers(names...), testQuestion("q1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func TestNewGameStateIsSetup(t *testing.T) {
	s := NewGameState("g1", DefaultGameSettings())
	if s.Status != StatusSetup {
		t.Fatalf("expected SETUP, got %s", s.Status)
	}
	if s.CurrentQuestion != nil || s.CurrentPlayerIndex != -1 {
		t.Fatalf("setup state must have no question and no current player: %+v", s)
	}
}

func TestStart(t *testing.T) {
	s := startedGame(t, DefaultGameSettings(), "Aisha", "Omar")

	if s.Status != StatusPlaying || s.Stage != StageDirect {
		t.Fatalf("expected PLAYING/DIRECT, got %s/%s", s.Status, s.Stage)
	}
	if s.CurrentPlayerIndex != 0 || s.Turn != 1 {
		t.Fatalf("expected first player on turn 1, got index=%d turn=%d", s.CurrentPlayerIndex, s.Turn)
	}
	if s.TimeRemaining != 45 {
		t.Fatalf("expected 45s countdown, got %d", s.TimeRemaining)
	}
	if !slices.Equal(s.UsedQuestionIDs, []string{"q1"}) {
		t.Fatalf("expected used ids [q1], got %v", s.UsedQuestionIDs)
	}
}

func TestStartPreconditions(t *testing.T) {
	setup := NewGameState("g1", DefaultGameSettings())

	tests := []struct {
		name    string
		players []Player
		q       Question
		want    error
	}{
		{"one player", testPlayers("Aisha"), testQuestion("q1"), ErrNotEnoughPlayers},
		{"duplicate ids", []Player{{ID: "x", Name: "A"}, {ID: "x", Name: "B"}}, testQuestion("q1"), ErrDuplicatePlayer},
		{"blank name", []Player{{ID: "a", Name: "A"}, {ID: "b", Name: " "}}, testQuestion("q1"), ErrEmptyName},
		{"bad question", testPlayers("A", "B"), Question{ID: "q"}, ErrInvalidQuestion},
		{"too many players", testPlayers("A", "B", "C", "D", "E", "F", "G"), testQuestion("q1"), ErrRosterFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := setup.Start(tt.players, tt.q)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if got.Status != StatusSetup {
				t.Fatalf("state must remain SETUP, got %s", got.Status)
			}
		})
	}

	started := startedGame(t, DefaultGameSettings(), "A", "B")
	if _, err := started.Start(testPlayers("A", "B"), testQuestion("q2")); !errors.Is(err, ErrGameStarted) {
		t.Fatalf("expected ErrGameStarted, got %v", err)
	}
}

func TestPublicHidesOpenAnswer(t *testing.T) {
	s := startedGame(t, DefaultGameSettings(), "Aisha", "Omar")

	for _, open := range []GameState{s, mustGrade(t, s, false)} {
		pub := open.Public()
		if pub.CurrentQuestion.CorrectAnswer != "" || pub.CurrentQuestion.Explanation != "" {
			t.Fatalf("%s: answer visible: %+v", open.Stage, pub.CurrentQuestion)
		}
		if len(pub.CurrentQuestion.Options) != OptionCount {
			t.Fatalf("%s: options must stay visible", open.Stage)
		}
	}
	if s.CurrentQuestion.CorrectAnswer == "" {
		t.Fatalf("Public must not modify the receiver")
	}

	result := mustGrade(t, s, true)
	if result.Public().CurrentQuestion.CorrectAnswer != "Ibrahim" {
		t.Fatalf("answer must be shown in RESULT")
	}
}

func mustGrade(t *testing.T, s GameState, correct bool) GameState {
	t.Helper()
	next, err := s.GradeDirect(correct)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	return next
}

func TestGradeDirectCorrect(t *testing.T) {
	s := startedGame(t, DefaultGameSettings(), "Aisha", "Omar")

	next, err := s.GradeDirect(true)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if next.Players[0].Score != 2 {
		t.Fatalf("expected 2 points, got %d", next.Players[0].Score)
	}
	if next.Stage != StageResult || !next.LastAnswerCorrect {
		t.Fatalf("expected correct RESULT, got %s correct=%v", next.Stage, next.LastAnswerCorrect)
	}
	if s.Players[0].Score != 0 || s.Stage != StageDirect {
		t.Fatalf("previous state was mutated: %+v", s)
	}
}

func TestGradeDirectIncorrectMovesToChoices(t *testing.T) {
	s := startedGame(t, DefaultGameSettings(), "Aisha", "Omar")

	next, err := s.GradeDirect(false)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if next.Stage != StageMultipleChoice || next.TimeRemaining != 20 {
		t.Fatalf("expected MULTIPLE_CHOICE with 20s, got %s with %d", next.Stage, next.TimeRemaining)
	}
	if next.TotalScore() != 0 {
		t.Fatalf("score must not change, got %d", next.TotalScore())
	}

	if _, err := next.GradeDirect(true); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage outside DIRECT, got %v", err)
	}
}

func TestSelectOption(t *testing.T) {
	s := startedGame(t, DefaultGameSettings(), "Aisha", "Omar")

	if _, ok := s.SelectOption("Ibrahim"); ok {
		t.Fatalf("select must be ignored during DIRECT")
	}

	choices, _ := s.GradeDirect(false)
	right, ok := choices.SelectOption("Ibrahim")
	if !ok {
		t.Fatalf("expected select to apply")
	}
	if right.Players[0].Score != 1 || !right.LastAnswerCorrect || right.SelectedOption != "Ibrahim" {
		t.Fatalf("unexpected state after correct pick: %+v", right)
	}

	again, ok := right.SelectOption("Musa")
	if ok || again.SelectedOption != "Ibrahim" || again.TotalScore() != 1 {
		t.Fatalf("second pick must be a no-op, got ok=%v state=%+v", ok, again)
	}

	wrong, _ := choices.SelectOption("Musa")
	if wrong.TotalScore() != 0 || wrong.LastAnswerCorrect || wrong.Stage != StageResult {
		t.Fatalf("unexpected state after wrong pick: %+v", wrong)
	}
}

func TestExpire(t *testing.T) {
	s := startedGame(t, DefaultGameSettings(), "Aisha", "Omar")

	choices, ok := s.Expire()
	if !ok || choices.Stage != StageMultipleChoice || choices.TimeRemaining != 20 {
		t.Fatalf("expected lateral move to choices, got ok=%v %+v", ok, choices)
	}

	result, ok := choices.Expire()
	if !ok || result.Stage != StageResult || result.LastAnswerCorrect || result.SelectedOption != "" {
		t.Fatalf("expected timed-out RESULT, got ok=%v %+v", ok, result)
	}

	if again, ok := result.Expire(); ok || again.Message != result.Message {
		t.Fatalf("expire in RESULT must be a no-op")
	}
}

func TestTick(t *testing.T) {
	s := startedGame(t, DefaultGameSettings(), "Aisha", "Omar")
	s.TimeRemaining = 1

	s = s.Tick()
	if s.TimeRemaining != 0 {
		t.Fatalf("expected 0, got %d", s.TimeRemaining)
	}
	if s = s.Tick(); s.TimeRemaining != 0 {
		t.Fatalf("countdown must not go negative, got %d", s.TimeRemaining)
	}
}

func TestNextTurnRotates(t *testing.T) {
	s := startedGame(t, DefaultGameSettings(), "A", "B", "C")

	for turn := 0; turn < 7; turn++ {
		old := s.CurrentPlayerIndex
		result, _ := s.GradeDirect(false)
		result, _ = result.Expire()

		next, err := result.NextTurn(testQuestion("q" + string(rune('a'+turn))))
		if err != nil {
			t.Fatalf("next turn: %v", err)
		}
		if next.CurrentPlayerIndex != (old+1)%3 {
			t.Fatalf("expected index %d, got %d", (old+1)%3, next.CurrentPlayerIndex)
		}
		if next.Stage != StageDirect || next.SelectedOption != "" || next.TimeRemaining != 45 {
			t.Fatalf("new turn not reset: %+v", next)
		}
		s = next
	}
	if len(s.UsedQuestionIDs) != 8 {
		t.Fatalf("expected 8 used ids, got %d", len(s.UsedQuestionIDs))
	}
}

func TestFinish(t *testing.T) {
	settings := DefaultGameSettings()
	settings.WinThreshold = 2
	s := startedGame(t, settings, "Aisha", "Omar")

	if _, err := s.Finish(); !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("finish outside RESULT must fail, got %v", err)
	}

	result, _ := s.GradeDirect(true)
	if _, err := result.NextTurn(testQuestion("q2")); !errors.Is(err, ErrGameFinished) {
		t.Fatalf("next turn with a winner must fail, got %v", err)
	}

	done, err := result.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.Status != StatusFinished || done.CurrentQuestion != nil {
		t.Fatalf("unexpected finished state: %+v", done)
	}
	if w := done.Winners(); len(w) != 1 || w[0].Name != "Aisha" {
		t.Fatalf("unexpected winners: %+v", w)
	}
}

func TestRankingIsStable(t *testing.T) {
	s := GameState{Players: []Player{
		{ID: "a", Name: "A", Score: 3},
		{ID: "b", Name: "B", Score: 5},
		{ID: "c", Name: "C", Score: 3},
		{ID: "d", Name: "D", Score: 5},
	}}

	got := s.Ranking()
	want := []string{"b", "d", "a", "c"}
	for i, p := range got {
		if p.ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], p.ID)
		}
	}
	if s.Players[0].ID != "a" {
		t.Fatalf("ranking must not reorder the players")
	}
}

func TestStageTransitions(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageDirect, StageMultipleChoice, true},
		{StageDirect, StageResult, true},
		{StageMultipleChoice, StageResult, true},
		{StageMultipleChoice, StageDirect, false},
		{StageResult, StageMultipleChoice, false},
		{StageResult, StageDirect, true},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}

	if !StatusSetup.CanTransitionTo(StatusPlaying) || StatusFinished.CanTransitionTo(StatusPlaying) {
		t.Errorf("unexpected status transitions")
	}
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *Question)
		valid  bool
	}{
		{"valid", func(q *Question) {}, true},
		{"three options", func(q *Question) { q.Options = q.Options[:3] }, false},
		{"duplicate option", func(q *Question) { q.Options = []string{"Ibrahim", "Musa", "Musa", "Nuh"} }, false},
		{"answer missing", func(q *Question) { q.CorrectAnswer = "Yusuf" }, false},
		{"blank option", func(q *Question) { q.Options[3] = "" }, false},
		{"blank text", func(q *Question) { q.Text = "  " }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := testQuestion("q1")
			q.Options = slices.Clone(q.Options)
			tt.mutate(&q)
			if err := q.Validate(); (err == nil) != tt.valid {
				t.Fatalf("expected valid=%v, got %v", tt.valid, err)
			}
		})
	}
}

func TestShuffleOptionsKeepsSet(t *testing.T) {
	q := testQuestion("q1")
	shuffled := q.ShuffleOptions(rand.New(rand.NewSource(7)))

	if err := shuffled.Validate(); err != nil {
		t.Fatalf("shuffled question invalid: %v", err)
	}
	got := slices.Clone(shuffled.Options)
	want := slices.Clone(q.Options)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Fatalf("options changed: %v", shuffled.Options)
	}
	if q.Options[0] != "Ibrahim" {
		t.Fatalf("input options were reordered")
	}
}

func TestRoster(t *testing.T) {
	r := NewRoster(2)

	if _, err := r.Add("   "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	a, err := r.Add(" Aisha ")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if a.Name != "Aisha" || a.ID == "" {
		t.Fatalf("unexpected player: %+v", a)
	}
	if _, err := r.Add("Omar"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := r.Add("Zaid"); !errors.Is(err, ErrRosterFull) {
		t.Fatalf("expected ErrRosterFull, got %v", err)
	}

	if err := r.Remove(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := r.Remove(a.ID); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
	if r.Len() != 1 || r.Players()[0].Name != "Omar" {
		t.Fatalf("unexpected roster: %+v", r.Players())
	}
}

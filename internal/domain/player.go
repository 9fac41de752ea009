package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Player represents a contestant at the table
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// NewPlayer creates a player with a fresh ID and zero score
func NewPlayer(name string) (Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Player{}, ErrEmptyName
	}
	return Player{
		ID:   uuid.NewString(),
		Name: name,
	}, nil
}

// Roster is the ordered player list built before a game starts.
// Order is turn order.
type Roster struct {
	players    []Player
	maxPlayers int
}

// NewRoster creates an empty roster capped at maxPlayers (0 means no cap)
func NewRoster(maxPlayers int) *Roster {
	return &Roster{maxPlayers: maxPlayers}
}

// Add appends a new player with the given name
func (r *Roster) Add(name string) (Player, error) {
	if r.maxPlayers > 0 && len(r.players) >= r.maxPlayers {
		return Player{}, ErrRosterFull
	}
	player, err := NewPlayer(name)
	if err != nil {
		return Player{}, err
	}
	r.players = append(r.players, player)
	return player, nil
}

// Remove deletes the player with the given ID
func (r *Roster) Remove(id string) error {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return nil
		}
	}
	return ErrPlayerNotFound
}

// Len returns the number of players
func (r *Roster) Len() int {
	return len(r.players)
}

// Players returns a copy of the roster in turn order
func (r *Roster) Players() []Player {
	return clonePlayers(r.players)
}

func clonePlayers(players []Player) []Player {
	if players == nil {
		return nil
	}
	out := make([]Player, len(players))
	copy(out, players)
	return out
}

func validatePlayers(players []Player, minPlayers, maxPlayers int) error {
	if len(players) < minPlayers {
		return ErrNotEnoughPlayers
	}
	if maxPlayers > 0 && len(players) > maxPlayers {
		return ErrRosterFull
	}
	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		if strings.TrimSpace(p.Name) == "" {
			return ErrEmptyName
		}
		if _, ok := seen[p.ID]; ok {
			return ErrDuplicatePlayer
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

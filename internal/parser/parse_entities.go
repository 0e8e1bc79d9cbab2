package parser

import (
	"errors"
	"fmt"

	"github.com/marsgrid/ticksync/pkg/core"
	"github.com/marsgrid/ticksync/pkg/streaming"
)

var errMissingID = errors.New("missing id")

func (p *Parser) parseAgents(raw []streaming.AgentMessage) ([]core.Agent, error) {
	agents := make([]core.Agent, 0, len(raw))
	for i, m := range raw {
		field := fmt.Sprintf("agents[%d]", i)
		if m.ID == "" {
			return nil, &DecodeError{Field: field, Err: errMissingID}
		}
		color, err := core.ParseColor(m.Color)
		if err != nil {
			return nil, &DecodeError{Field: field + ".color", Err: err}
		}
		// stance is optional on the wire; older simulations omit it
		stance := core.Standing
		if m.Stance != "" {
			if stance, err = core.ParseStance(m.Stance); err != nil {
				return nil, &DecodeError{Field: field + ".stance", Err: err}
			}
		}
		agents = append(agents, core.Agent{
			ID:          m.ID,
			X:           m.X,
			Y:           m.Y,
			Alive:       m.Alive,
			Color:       color,
			VisualRange: m.VisualRange,
			TaggerID:    m.TaggerID,
			Team:        m.Team,
			GotShot:     m.GotShot,
			Stance:      stance,
		})
	}
	return agents, nil
}

func (p *Parser) parseItems(raw []streaming.ItemMessage) ([]core.Item, error) {
	items := make([]core.Item, 0, len(raw))
	for i, m := range raw {
		field := fmt.Sprintf("items[%d]", i)
		if m.ID == "" {
			return nil, &DecodeError{Field: field, Err: errMissingID}
		}
		color, err := core.ParseColor(m.Color)
		if err != nil {
			return nil, &DecodeError{Field: field + ".color", Err: err}
		}
		itemType, err := core.ParseItemType(m.Type)
		if err != nil {
			return nil, &DecodeError{Field: field + ".type", Err: err}
		}
		items = append(items, core.Item{
			ID:       m.ID,
			X:        m.X,
			Y:        m.Y,
			Color:    color,
			Type:     itemType,
			PickedUp: m.PickedUp,
			OwnerID:  m.OwnerID,
		})
	}
	return items, nil
}

func (p *Parser) parseBarrels(raw []streaming.BarrelMessage) ([]core.Barrel, error) {
	barrels := make([]core.Barrel, 0, len(raw))
	for i, m := range raw {
		if m.ID == "" {
			return nil, &DecodeError{Field: fmt.Sprintf("explosiveBarrels[%d]", i), Err: errMissingID}
		}
		barrels = append(barrels, core.Barrel{
			ID:          m.ID,
			X:           m.X,
			Y:           m.Y,
			HasExploded: m.HasExploded,
		})
	}
	return barrels, nil
}

func (p *Parser) parseScores(raw []streaming.ScoreMessage) ([]core.Score, error) {
	scores := make([]core.Score, 0, len(raw))
	for i, m := range raw {
		// scores without a color belong to no team palette
		color := core.Grey
		if m.TeamColor != "" {
			var err error
			if color, err = core.ParseColor(m.TeamColor); err != nil {
				return nil, &DecodeError{Field: fmt.Sprintf("scores[%d].teamColor", i), Err: err}
			}
		}
		scores = append(scores, core.Score{
			TeamName:  m.TeamName,
			TeamColor: color,
			TeamScore: m.Score,
		})
	}
	return scores, nil
}

// Package seed creates the demo forest used in development.
package seed

import (
	"context"
	"fmt"

	"github.com/nicobenz/flowpertoire/application/commands"
	"github.com/nicobenz/flowpertoire/application/commands/bus"
	"github.com/nicobenz/flowpertoire/application/sagas"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"go.uber.org/zap"
)

type demoSkill struct {
	title  string
	rating int
	status valueobjects.SkillStatus
}

type demoGroup struct {
	label       string
	description string
	skills      []demoSkill
}

type demoTree struct {
	label       string
	description string
	groups      []demoGroup
}

var demo = []demoTree{
	{
		label:       "Calisthenics",
		description: "Bodyweight strength skills",
		groups: []demoGroup{{
			label:       "Push-up variations",
			description: "Horizontal pushing progressions",
			skills: []demoSkill{
				{"Regular Push-up", 5, valueobjects.StatusMastered},
				{"Diamond Push-up", 4, valueobjects.StatusLearning},
				{"Archer Push-up", 3, valueobjects.StatusLearning},
				{"Pseudo Planche Push-up", 2, valueobjects.StatusWishlist},
			},
		}},
	},
	{label: "Salsa dance"},
}

// TreeLister reports the trees a user already has
type TreeLister func(ctx context.Context, userID valueobjects.UserID) ([]entities.RootTree, error)

// Demo creates the demo trees for userID through the command bus. Trees
// whose slug already exists are skipped, so running it twice is safe. A
// tree that fails halfway is deleted again.
// It returns the names of the trees it created.
func Demo(ctx context.Context, cmds *bus.CommandBus, list TreeLister, userID valueobjects.UserID, logger *zap.Logger) ([]string, error) {
	existing, err := list(ctx, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.Slug] = true
	}

	var created []string
	for _, tree := range demo {
		if have[valueobjects.Slugify(tree.label)] {
			continue
		}
		if err := createTree(ctx, cmds, userID, tree, logger); err != nil {
			return created, fmt.Errorf("seed %q: %w", tree.label, err)
		}
		created = append(created, tree.label)
	}
	return created, nil
}

func createTree(ctx context.Context, cmds *bus.CommandBus, userID valueobjects.UserID, tree demoTree, logger *zap.Logger) error {
	var root entities.RootTree
	saga := sagas.New("seed "+tree.label, logger).CompensableStep("create tree",
		func(ctx context.Context) error {
			cmd := commands.CreateTreeCommand{UserID: userID, Label: tree.label}
			if tree.description != "" {
				cmd.Description = &tree.description
			}
			res, err := cmds.Execute(ctx, cmd)
			if err != nil {
				return err
			}
			root = res.(entities.RootTree)
			return nil
		},
		// deleting the root cascades to everything added below it
		func(ctx context.Context) error {
			_, err := cmds.Execute(ctx, commands.DeleteTreeCommand{UserID: userID, TreeID: root.ID})
			return err
		},
	)

	for _, g := range tree.groups {
		var group entities.Node
		saga.Step("add group "+g.label, func(ctx context.Context) error {
			desc := g.description
			res, err := cmds.Execute(ctx, commands.AddGroupCommand{
				UserID:       userID,
				ParentNodeID: root.ID,
				Label:        g.label,
				Description:  &desc,
			})
			if err != nil {
				return err
			}
			group = res.(entities.Node)
			return nil
		})

		for _, sk := range g.skills {
			saga.Step("add skill "+sk.title, func(ctx context.Context) error {
				res, err := cmds.Execute(ctx, commands.AddSkillCommand{
					UserID:       userID,
					ParentNodeID: group.ID,
					Title:        sk.title,
				})
				if err != nil {
					return err
				}
				rating, status := sk.rating, sk.status
				_, err = cmds.Execute(ctx, commands.UpdateSkillCommand{
					UserID: userID,
					NodeID: res.(entities.Node).ID,
					Rating: &rating,
					Status: &status,
				})
				return err
			})
		}
	}
	return saga.Execute(ctx)
}

package handlers

import (
	"github.com/nicobenz/flowpertoire/application/commands"
	"github.com/nicobenz/flowpertoire/application/commands/bus"
	"go.uber.org/zap"
)

// RegisterAll wires every command handler into the bus
func RegisterAll(b *bus.CommandBus, writer *ForestWriter, logger *zap.Logger) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CreateTreeCommand{}, NewCreateTreeHandler(writer, logger)},
		{commands.DeleteTreeCommand{}, NewDeleteTreeHandler(writer, logger)},
		{commands.AddGroupCommand{}, NewAddGroupHandler(writer)},
		{commands.AddSkillCommand{}, NewAddSkillHandler(writer)},
		{commands.UpdateSkillCommand{}, NewUpdateSkillHandler(writer)},
		{commands.LinkConceptCommand{}, NewLinkConceptHandler(writer)},
		{commands.AttachChildCommand{}, NewAttachChildHandler(writer)},
	}

	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/docsync/internal/client/document"
	"github.com/iudanet/docsync/internal/models"
)

var actionHelp = map[models.Action]string{
	models.ActionPublish:   "Publish the current version",
	models.ActionUnpublish: "Take the entity offline, keeping it as a draft",
	models.ActionArchive:   "Archive a draft",
	models.ActionUnarchive: "Return an archived entity to draft",
	models.ActionDelete:    "Delete the entity",
}

func (c *Cli) lifecycleCmd(action models.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <id>",
		Short: actionHelp[action],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.withTimeout(cmd.Context())
			defer cancel()

			sess, err := c.session(ctx, cmd)
			if err != nil {
				return err
			}
			return c.withDocument(ctx, sess, c.ref(sess, args[0]), func(ctx context.Context, doc *document.Document) error {
				manager := doc.Resource()
				before := manager.Current()
				sys, err := manager.Perform(ctx, action)
				if err != nil {
					return fmt.Errorf("%s failed: %w", action, err)
				}
				c.io.Printf("✓ %s: %s → %s (version %d)\n",
					strings.ToUpper(string(action[:1]))+string(action[1:]), before, manager.Current(), sys.Version)
				return nil
			})
		},
	}
}
